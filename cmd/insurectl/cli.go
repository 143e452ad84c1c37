package main

import "github.com/alecthomas/kong"

// CLI defines the insurectl command line.
type CLI struct {
	Store      string `help:"Record store (sqlite or postgres); overrides INSUREAI_STORE"`
	SQLitePath string `name:"sqlite-path" help:"SQLite database file; overrides INSUREAI_SQLITE_PATH" type:"path"`

	Seed    SeedCmd    `cmd:"" help:"Create the schema and load the synthetic dataset"`
	Chat    ChatCmd    `cmd:"" help:"Chat with the assistant as a customer"`
	Report  ReportCmd  `cmd:"" help:"Print a customer report as JSON"`
	Keygen  KeygenCmd  `cmd:"" help:"Generate an Ed25519 JWT signing key pair"`
	HashKey HashKeyCmd `cmd:"" name:"hash-key" help:"Hash an admin API key for INSUREAI_ADMIN_API_KEY_HASH"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// SeedCmd loads the dataset into an empty store.
type SeedCmd struct {
	Customers int `short:"n" default:"1000" help:"Customers to generate"`
}

// ChatCmd runs an interactive conversation against the in-process graph.
type ChatCmd struct {
	Customer string `short:"c" xor:"who" required:"" help:"Customer ID (CUST00042)"`
	Email    string `short:"e" xor:"who" required:"" help:"Customer email"`
}

// ReportCmd prints the customer report.
type ReportCmd struct {
	Customer string `arg:"" help:"Customer ID"`
}

// KeygenCmd writes a PEM key pair.
type KeygenCmd struct {
	Output string `short:"o" default:"insureai-jwt" help:"Output path prefix (creates .pem and .pub.pem)"`
	Force  bool   `help:"Overwrite existing files"`
}

// HashKeyCmd hashes an admin key with argon2id.
type HashKeyCmd struct {
	Key string `arg:"" help:"Admin API key to hash"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
