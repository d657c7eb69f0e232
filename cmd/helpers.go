package cmd

import (
	"fmt"
	"strings"

	"github.com/marcus/wsmenu/internal/config"
	"github.com/marcus/wsmenu/internal/db"
	"github.com/marcus/wsmenu/internal/features"
	"github.com/marcus/wsmenu/internal/models"
	"github.com/marcus/wsmenu/internal/output"
	"github.com/marcus/wsmenu/internal/page"
	"github.com/marcus/wsmenu/internal/suggest"
	"github.com/marcus/wsmenu/internal/syncclient"
	"github.com/spf13/cobra"
)

// session bundles what most commands need: the replica and the effective
// config.
type session struct {
	DB     *db.DB
	Config *models.Config
}

func openSession() (*session, error) {
	baseDir := getBaseDir()
	cfg, err := config.Effective(baseDir)
	if err != nil {
		output.Error("load config: %v", err)
		return nil, err
	}
	database, err := db.Open(baseDir)
	if err != nil {
		output.Error("%v", err)
		return nil, err
	}
	return &session{DB: database, Config: cfg}, nil
}

func (s *session) Close() error {
	return s.DB.Close()
}

func (s *session) client() *syncclient.Client {
	return syncclient.New(s.Config.ServerURL)
}

// offline resolves --offline against the configured connectivity.
func (s *session) offline(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("offline") {
		v, _ := cmd.Flags().GetBool("offline")
		return v
	}
	return s.Config.Offline
}

// workspaceArg returns args[0] or the configured default workspace.
func (s *session) workspaceArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if s.Config.WorkspaceID != "" {
		return s.Config.WorkspaceID, nil
	}
	return "", fmt.Errorf("no workspace given and workspace_id is not configured")
}

// view runs one reconciliation pass over the replica record.
func (s *session) view(workspaceID, login string, offline bool) (page.View, error) {
	stored, draft, err := s.DB.LoadRecord(workspaceID)
	if err != nil {
		return page.View{}, err
	}
	if login == "" {
		login = s.Config.Login
	}
	p := page.New(config.HighlightDuration(s.Config), offline)
	p.Update(viewAs(stored, login), viewAs(draft, login))
	return p.View(), nil
}

// viewAs returns ws as seen by login: the role comes from the member list,
// and a login that is not a member is a plain user.
func viewAs(ws *models.Workspace, login string) *models.Workspace {
	if ws == nil || login == "" {
		return ws
	}
	out := ws.Clone()
	out.Role = models.RoleUser
	if e, ok := ws.EmployeeList[login]; ok && e.Role != "" {
		out.Role = e.Role
	}
	return out
}

func parseFeatureArg(name string) (features.Feature, error) {
	f, err := features.Parse(name)
	if err == nil {
		return f, nil
	}
	names := make([]string, 0, features.Count)
	for _, g := range features.All() {
		names = append(names, g.String())
	}
	if hints := suggest.Closest(name, names); len(hints) > 0 {
		return features.None, fmt.Errorf("%w, did you mean %s?", err, strings.Join(hints, ", "))
	}
	return features.None, fmt.Errorf("%w (run 'wsmenu features' for the list)", err)
}
