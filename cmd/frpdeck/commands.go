package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/loykin/frpdeck/internal/config"
	"github.com/loykin/frpdeck/internal/store"
	storefactory "github.com/loykin/frpdeck/internal/store/factory"
	"github.com/loykin/frpdeck/pkg/client"
)

const defaultAPIURL = client.DefaultBaseURL

// command implements the client-side subcommands against a running daemon.
type command struct {
	out    io.Writer
	global *GlobalFlags
}

// apiURL picks --api-url, then the listen address from --config, then the default.
func (c command) apiURL() (string, error) {
	if c.global.APIUrl != "" {
		return c.global.APIUrl, nil
	}
	if c.global.ConfigPath == "" {
		return defaultAPIURL, nil
	}
	cfg, err := config.Load(c.global.ConfigPath)
	if err != nil {
		return "", err
	}
	return urlFromServer(cfg.Server), nil
}

func urlFromServer(s config.ServerConfig) string {
	scheme := "http"
	if s.TLS.Enabled {
		scheme = "https"
	}
	host := s.Listen
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	host = strings.Replace(host, "0.0.0.0:", "127.0.0.1:", 1)
	return scheme + "://" + host + s.BasePath
}

func (c command) client() (*client.Client, error) {
	u, err := c.apiURL()
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{
		BaseURL:  u,
		Timeout:  c.global.APITimeout,
		CACert:   c.global.CACert,
		Insecure: c.global.Insecure,
		Token:    c.global.Token,
		Username: c.global.User,
		Password: c.global.Password,
	})
}

func (c command) Start(ctx context.Context, id string, noRender bool) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	var pid int
	if noRender {
		pid, err = cl.StartRendered(ctx, id)
	} else {
		pid, err = cl.Start(ctx, id)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "started %s (pid %d)\n", id, pid)
	return nil
}

func (c command) Stop(ctx context.Context, id string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	if err := cl.Stop(ctx, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "stopped %s\n", id)
	return nil
}

func (c command) Status(ctx context.Context, id string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	var sts []client.Status
	if id != "" {
		st, err := cl.Status(ctx, id)
		if err != nil {
			return err
		}
		sts = []client.Status{st}
	} else if sts, err = cl.StatusAll(ctx); err != nil {
		return err
	}
	printStatuses(c.out, sts)
	return nil
}

func printStatuses(w io.Writer, sts []client.Status) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROFILE\tSTATE\tPID\tUPTIME\tNOTE")
	for _, st := range sts {
		state, pid, up := "stopped", "-", "-"
		if st.Running {
			state = "running"
			pid = fmt.Sprint(st.PID)
			if !st.StartedAt.IsZero() {
				up = time.Since(st.StartedAt).Truncate(time.Second).String()
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", st.ProfileID, state, pid, up, st.Note)
	}
	_ = tw.Flush()
}

func (c command) Logs(ctx context.Context, id string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	out, err := cl.Logs(ctx, id)
	if err != nil {
		return err
	}
	_, _ = io.WriteString(c.out, out)
	return nil
}

func (c command) Render(ctx context.Context, id string, write bool) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	if write {
		path, err := cl.WriteConfig(ctx, id)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(c.out, path)
		return nil
	}
	text, err := cl.Render(ctx, id)
	if err != nil {
		return err
	}
	_, _ = io.WriteString(c.out, text)
	return nil
}

func (c command) Profiles(ctx context.Context) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	set, err := cl.Profiles(ctx)
	if err != nil {
		return err
	}
	printJSON(c.out, set)
	return nil
}

// Export works on the configured store directly when --config is given,
// otherwise it asks the daemon.
func (c command) Export(ctx context.Context, file string) error {
	if c.global.ConfigPath != "" && c.global.APIUrl == "" {
		st, err := c.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		if err := store.Export(ctx, st, file); err != nil {
			return err
		}
	} else {
		cl, err := c.client()
		if err != nil {
			return err
		}
		set, err := cl.Profiles(ctx)
		if err != nil {
			return err
		}
		if err := store.WriteSetFile(file, set); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(c.out, "exported to %s\n", file)
	return nil
}

// Import validates file and replaces the stored set, locally or via the daemon
// like Export.
func (c command) Import(ctx context.Context, file string) error {
	var n int
	if c.global.ConfigPath != "" && c.global.APIUrl == "" {
		st, err := c.openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		set, err := store.Import(ctx, st, file)
		if err != nil {
			return err
		}
		n = len(set.Servers)
	} else {
		set, err := store.ReadSetFile(file)
		if err != nil {
			return err
		}
		if err := set.Validate(); err != nil {
			return err
		}
		cl, err := c.client()
		if err != nil {
			return err
		}
		if err := cl.SaveProfiles(ctx, set); err != nil {
			return err
		}
		n = len(set.Servers)
	}
	_, _ = fmt.Fprintf(c.out, "imported %d profile(s)\n", n)
	return nil
}

func (c command) openStore() (store.Store, error) {
	cfg, err := config.Load(c.global.ConfigPath)
	if err != nil {
		return nil, err
	}
	return storefactory.NewFromDSN(cfg.Store.DSN)
}
