package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ashita-ai/insureai/internal/app"
	"github.com/ashita-ai/insureai/internal/auth"
	"github.com/ashita-ai/insureai/internal/config"
	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/service/report"
)

// loadConfig reads the environment and applies the global flag overrides.
func (g *Globals) loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if g.store != "" {
		cfg.Store = g.store
	}
	if g.sqlitePath != "" {
		cfg.SQLitePath = g.sqlitePath
	}
	return cfg, nil
}

func (g *Globals) openStore() (app.Store, config.Config, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	store, err := app.OpenStore(g.Ctx, cfg, g.Logger)
	if err != nil {
		return nil, config.Config{}, err
	}
	return store, cfg, nil
}

// Run loads the dataset when the store has no customers yet.
func (c *SeedCmd) Run(g *Globals) error {
	if c.Customers <= 0 {
		return fmt.Errorf("--customers must be positive")
	}
	store, cfg, err := g.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	seeded, err := app.SeedIfEmpty(g.Ctx, store, c.Customers, g.Logger)
	if err != nil {
		return err
	}
	n, err := store.CountCustomers(g.Ctx)
	if err != nil {
		return err
	}
	if !seeded {
		_, _ = fmt.Fprintf(g.Out, "%s store already holds %d customers, nothing to do\n", cfg.Store, n)
		return nil
	}
	_, _ = fmt.Fprintf(g.Out, "seeded %s store with %d customers\n", cfg.Store, n)
	return nil
}

// Run starts a session and relays stdin lines until the customer leaves.
func (c *ChatCmd) Run(g *Globals) error {
	store, cfg, err := g.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	kb, closer, err := app.NewSearcher(g.Ctx, cfg, store, g.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	rt := app.NewRuntime(store, kb, app.Options{SessionTTL: cfg.SessionTTL, MaxGraphSteps: cfg.MaxGraphSteps}, g.Logger)
	defer rt.Close()

	var sid, greeting string
	if c.Email != "" {
		login, err := rt.Chat.Login(g.Ctx, c.Email)
		if err != nil {
			return err
		}
		sid, greeting = login.SessionID, login.Greeting
	} else {
		if _, err := store.FindCustomer(g.Ctx, model.CustomerLookup{CustomerID: c.Customer}); err != nil {
			return fmt.Errorf("customer %s: %w", c.Customer, err)
		}
		if sid, greeting, err = rt.Chat.Start(g.Ctx, model.Principal(c.Customer)); err != nil {
			return err
		}
	}
	defer rt.Chat.Logout(sid)

	_, _ = fmt.Fprintf(g.Out, "%s\n(type 'quit' to leave)\n", greeting)
	scanner := bufio.NewScanner(g.In)
	for {
		_, _ = fmt.Fprint(g.Out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(g.Out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		resp, err := rt.Chat.Send(g.Ctx, sid, line)
		if err != nil {
			_, _ = fmt.Fprintf(g.Out, "error: %v\n", err)
			continue
		}
		_, _ = fmt.Fprintf(g.Out, "[%s] %s\n", resp.AgentName, resp.AIMessage)
		if resp.Terminated {
			return nil
		}
	}
}

// Run prints the report for one customer.
func (c *ReportCmd) Run(g *Globals) error {
	store, _, err := g.openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rep, err := report.New(store, g.Logger).Generate(g.Ctx, model.Principal(c.Customer))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(g.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// Run writes <output>.pem and <output>.pub.pem.
func (c *KeygenCmd) Run(g *Globals) error {
	privPath, pubPath := c.Output+".pem", c.Output+".pub.pem"
	if !c.Force {
		if err := checkKeyPaths(privPath, pubPath); err != nil {
			return err
		}
	}
	privPEM, pubPEM, err := auth.GenerateKeyPEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil { //nolint:gosec // public key
		return fmt.Errorf("write public key: %w", err)
	}
	_, _ = fmt.Fprintf(g.Out, "INSUREAI_JWT_PRIVATE_KEY=%s\nINSUREAI_JWT_PUBLIC_KEY=%s\n", privPath, pubPath)
	return nil
}

func checkKeyPaths(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", p)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Run prints the argon2id hash of the key.
func (c *HashKeyCmd) Run(g *Globals) error {
	hash, err := auth.HashAdminKey(c.Key)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.Out, hash)
	return nil
}

// Run prints the build version.
func (c *VersionCmd) Run(g *Globals) error {
	_, _ = fmt.Fprintf(g.Out, "insurectl %s\n", version)
	return nil
}
