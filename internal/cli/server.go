package cli

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/tkarls/arrmon/internal/config"
	"github.com/tkarls/arrmon/internal/errors"
	"github.com/tkarls/arrmon/internal/ui"
)

// ServerAddOptions holds the pre-specified flags for 'server add'.
// Zero/empty fields are prompted for interactively.
type ServerAddOptions struct {
	ID   int64
	Name string
	Kind string
	URL  string
}

// probeTimeout bounds the per-server reachability check in 'server list'.
const probeTimeout = 2 * time.Second

// serverAdd registers a new server in the config.
func serverAdd(opts ServerAddOptions) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	if opts.ID == 0 || opts.Name == "" {
		collected, cancelled, err := collectServer(cfg, opts)
		if err != nil {
			return err
		}
		if cancelled {
			fmt.Println("Cancelled.")
			return nil
		}
		opts = collected
	}

	if opts.Kind == "" {
		opts.Kind = "other"
	}

	server := config.Server{
		ID:   opts.ID,
		Name: opts.Name,
		Kind: opts.Kind,
		URL:  opts.URL,
	}

	// Validate the candidate in place before touching the file
	candidate := *cfg
	candidate.Servers = append(append([]config.Server{}, cfg.Servers...), server)
	if err := config.Validate(&candidate); err != nil {
		return err
	}

	if err := config.AddServer(configPath, server); err != nil {
		return err
	}

	fmt.Printf("%s Added server '%s' (id %d)\n", ui.SymbolSuccess, server.Name, server.ID)
	return nil
}

// collectServer prompts for the missing server details.
func collectServer(cfg *config.Config, opts ServerAddOptions) (ServerAddOptions, bool, error) {
	name := opts.Name
	kind := opts.Kind
	if kind == "" {
		kind = "other"
	}
	rawURL := opts.URL
	idStr := ""
	if opts.ID > 0 {
		idStr = strconv.FormatInt(opts.ID, 10)
	} else {
		idStr = strconv.FormatInt(nextServerID(cfg), 10)
	}

	kinds := make([]string, 0, len(config.KnownKinds))
	for k := range config.KnownKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	kindOptions := make([]huh.Option[string], len(kinds))
	for i, k := range kinds {
		kindOptions[i] = huh.NewOption(k, k)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server name").
				Description("Display name, unique within the config").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					if _, exists := cfg.ServerByName(s); exists {
						return fmt.Errorf("a server named '%s' already exists", s)
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Kind").
				Options(kindOptions...).
				Value(&kind),
			huh.NewInput().
				Title("Management URL").
				Description("The server's own web UI (optional)").
				Value(&rawURL),
			huh.NewInput().
				Title("Backend id").
				Description("The identifier the metrics API reports for this server").
				Value(&idStr).
				Validate(func(s string) error {
					id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
					if err != nil || id <= 0 {
						return fmt.Errorf("id must be a positive integer")
					}
					if _, exists := cfg.ServerByID(id); exists {
						return fmt.Errorf("a server with id %d already exists", id)
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return ServerAddOptions{}, true, nil
		}
		return ServerAddOptions{}, false, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your input",
			"Try again or use flags: arrmon server add --id 4 --name music --url http://nas:8686")
	}

	id, _ := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	return ServerAddOptions{
		ID:   id,
		Name: strings.TrimSpace(name),
		Kind: kind,
		URL:  strings.TrimSpace(rawURL),
	}, false, nil
}

// nextServerID suggests the lowest free identifier.
func nextServerID(cfg *config.Config) int64 {
	var max int64
	for _, s := range cfg.Servers {
		if s.ID > max {
			max = s.ID
		}
	}
	return max + 1
}

// serverRemove removes a server from the configuration.
func serverRemove(arg string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Servers) == 0 {
		return errors.New(errors.ErrConfig,
			"No servers configured",
			"Nothing to remove.")
	}

	var id int64
	if arg == "" {
		// Show picker
		options := make([]huh.Option[int64], len(cfg.Servers))
		for i, s := range cfg.Servers {
			label := fmt.Sprintf("%s (%s)", s.Name, s.Kind)
			if s.URL != "" {
				label += " - " + s.URL
			}
			options[i] = huh.NewOption(label, s.ID)
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[int64]().
					Title("Select server to remove").
					Options(options...).
					Value(&id),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't get your selection",
				"Try again or use: arrmon server remove <id>")
		}
	} else {
		id, err = strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("'%s' is not a server id", arg),
				"Use the numeric id shown by 'arrmon server list'.")
		}
	}

	server, exists := cfg.ServerByID(id)
	if !exists {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("No server with id %d", id),
			"Check 'arrmon server list' for the configured ids.")
	}

	// Confirm removal
	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove server '%s'?", server.Name)).
				Description("This cannot be undone").
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your input",
			"Try again or edit "+configPath+" manually.")
	}
	if !confirm {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := config.RemoveServer(configPath, id); err != nil {
		return err
	}

	fmt.Printf("%s Removed server '%s'\n", ui.SymbolSuccess, server.Name)
	return nil
}

// serverList lists the configured servers with a reachability probe.
func serverList() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if len(cfg.Servers) == 0 {
		fmt.Println("No servers configured.")
		fmt.Println("\nAdd one with: arrmon server add")
		return nil
	}

	client := &http.Client{Timeout: probeTimeout}
	rows := make([]ui.ServerTableRow, len(cfg.Servers))
	for i, s := range cfg.Servers {
		rows[i] = ui.ServerTableRow{
			Reporting: probeServer(client, cfg.Dashboard.BaseURL, s.ID),
			ID:        strconv.FormatInt(s.ID, 10),
			Name:      s.Name,
			Kind:      s.Kind,
			URL:       s.URL,
		}
	}

	fmt.Println(ui.RenderServerTable(rows))
	return nil
}

// probeServer checks whether the metrics API currently has data for the
// server. Failures just render as not-reporting; the list never errors on
// an unreachable backend.
func probeServer(client *http.Client, baseURL string, id int64) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/metrics/%d", baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
