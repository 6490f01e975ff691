package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
)

// NewVerifyCommand groups the integrity checks.
func NewVerifyCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute stored hashes and compare them",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:           "baseline <plan-id>",
			Short:         "Verify the latest baseline snapshot of a plan",
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, rootOpts, open, func(ctx context.Context, b *Backend, f *formatter) error {
					return runVerifyBaseline(ctx, b, f, args[0])
				})
			},
		},
		&cobra.Command{
			Use:           "sample <sample-id>",
			Short:         "Verify the selection hash of a sample",
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, rootOpts, open, func(ctx context.Context, b *Backend, f *formatter) error {
					return runVerifySample(ctx, b, f, args[0])
				})
			},
		},
		&cobra.Command{
			Use:           "audit-chain",
			Short:         "Verify the hash chain of the audit log",
			Args:          cobra.NoArgs,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, rootOpts, open, func(ctx context.Context, b *Backend, f *formatter) error {
					return runVerifyAuditChain(ctx, b, f)
				})
			},
		},
	)
	return cmd
}

func withBackend(cmd *cobra.Command, opts *RootOptions, open Opener, fn func(context.Context, *Backend, *formatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := open(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening backend", err)
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(ctx, b, &formatter{format: opts.Format, w: cmd.OutOrStdout()})
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s id %q", kind, raw), err)
	}
	return id, nil
}

func verdict(valid bool) string {
	if valid {
		return "valid"
	}
	return "INVALID"
}

func runVerifyBaseline(ctx context.Context, b *Backend, f *formatter, raw string) error {
	id, err := parseID("plan", raw)
	if err != nil {
		return err
	}
	v, err := b.Plans.VerifyBaseline(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "verifying baseline", err)
	}
	if err := f.emit(v.Valid, v,
		fmt.Sprintf("baseline %s of plan %s: %s", v.BaselineID, v.PlanID, verdict(v.Valid)),
		fmt.Sprintf("  stored:   %s", v.StoredHash),
		fmt.Sprintf("  computed: %s", v.ComputedHash),
		fmt.Sprintf("  items: %d  plan hash matches: %t  canonical: %t", v.ItemCount, v.PlanHashMatches, v.CanonicalEncoded),
	); err != nil {
		return err
	}
	if !v.Valid {
		return NewExitError(ExitFailure, "baseline verification failed")
	}
	return nil
}

func runVerifySample(ctx context.Context, b *Backend, f *formatter, raw string) error {
	id, err := parseID("sample", raw)
	if err != nil {
		return err
	}
	v, err := b.Samples.VerifySample(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "verifying sample", err)
	}
	if err := f.emit(v.Valid, v,
		fmt.Sprintf("sample %s: %s", v.SampleID, verdict(v.Valid)),
		fmt.Sprintf("  stored:   %s", v.StoredHash),
		fmt.Sprintf("  computed: %s", v.ComputedHash),
	); err != nil {
		return err
	}
	if !v.Valid {
		return NewExitError(ExitFailure, "sample verification failed")
	}
	return nil
}

type chainReport struct {
	Entries int                `json:"entries"`
	Breaks  []audit.ChainBreak `json:"breaks"`
	Valid   bool               `json:"valid"`
}

func runVerifyAuditChain(ctx context.Context, b *Backend, f *formatter) error {
	entries, err := b.Audit.AuditEntries(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading audit log", err)
	}
	breaks := audit.VerifyChain(entries)
	r := chainReport{Entries: len(entries), Breaks: breaks, Valid: len(breaks) == 0}
	if r.Breaks == nil {
		r.Breaks = []audit.ChainBreak{}
	}

	lines := []string{fmt.Sprintf("audit chain: %d entries, %s", r.Entries, verdict(r.Valid))}
	for _, br := range breaks {
		lines = append(lines, fmt.Sprintf("  #%d %s: %s", br.Sequence, br.EntryID, br.Reason))
	}
	if err := f.emit(r.Valid, r, lines...); err != nil {
		return err
	}
	if !r.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("audit chain has %d break(s)", len(breaks)))
	}
	return nil
}
