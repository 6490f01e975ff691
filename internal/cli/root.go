// Package cli implements qauditctl, the offline integrity checker for
// baselines, samples and the audit log.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
	"github.com/davidleathers/qaudit-backend/internal/domain/plan"
	"github.com/davidleathers/qaudit-backend/internal/infrastructure/config"
	"github.com/davidleathers/qaudit-backend/internal/service/sampling"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath  string
	Format      string // "json" | "text"
	DatabaseURL string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// BaselineVerifier re-hashes a plan's latest baseline
type BaselineVerifier interface {
	VerifyBaseline(ctx context.Context, planID uuid.UUID) (*plan.Verification, error)
}

// SampleVerifier re-hashes a stored sample's selection parameters
type SampleVerifier interface {
	VerifySample(ctx context.Context, id uuid.UUID) (*sampling.Verification, error)
}

// AuditLog lists the audit entries ordered by sequence
type AuditLog interface {
	AuditEntries(ctx context.Context) ([]*audit.Entry, error)
}

// Backend is what the verify commands run against.
type Backend struct {
	Plans   BaselineVerifier
	Samples SampleVerifier
	Audit   AuditLog
	Close   func()
}

// Opener connects a Backend for the given options.
type Opener func(ctx context.Context, opts *RootOptions) (*Backend, error)

// NewRootCommand creates the root command for qauditctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qauditctl",
		Short: "QAudit Pro integrity checks",
		Long:  "Verifies plan baselines, sample selections and the hash-chained audit log against the database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultConfigPath, "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "overrides database.url from the configuration")

	cmd.AddCommand(NewVerifyCommand(opts, open))

	return cmd
}
