package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/phr/phr/internal/domain/bundle"
	"github.com/phr/phr/internal/domain/records"
)

type exportOptions struct {
	CachePath string
	Owner     string
	Format    string
	Out       string
}

func exportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build a bundle from a local record cache file without a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger("development")
			n, err := runExport(cmd.Context(), afero.NewOsFs(), opts, logger)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %d bytes to %s\n", n, opts.Out)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.CachePath, "cache", "./data/records.db", "SQLite record cache file")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "Owner identity (email) to export")
	cmd.Flags().StringVar(&opts.Format, "format", "json", "Output format: json, qr or pdf")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Output file")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// runExport assembles the owner's bundle from local records only and writes
// it to opts.Out on fsys.
func runExport(ctx context.Context, fsys afero.Fs, opts exportOptions, logger zerolog.Logger) (int, error) {
	if opts.Owner == "" || opts.Out == "" {
		return 0, errors.New("--owner and --out are required")
	}

	repo, err := records.OpenSQLite(ctx, opts.CachePath)
	if err != nil {
		return 0, fmt.Errorf("open cache: %w", err)
	}
	defer repo.Close()

	asm := bundle.NewAssembler(records.NewService(repo, logger), nil, nil, logger)
	b, err := asm.Assemble(ctx, opts.Owner)
	if err != nil {
		return 0, err
	}

	var body []byte
	switch opts.Format {
	case "json":
		body, err = bundle.JSON(b)
	case "qr":
		body, err = bundle.QR(b)
	case "pdf":
		var buf bytes.Buffer
		err = bundle.PDF(&buf, b, opts.Owner)
		body = buf.Bytes()
	default:
		return 0, fmt.Errorf("unknown format %q (want json, qr or pdf)", opts.Format)
	}
	if err != nil {
		return 0, err
	}
	if err := afero.WriteFile(fsys, opts.Out, body, 0o600); err != nil {
		return 0, err
	}
	return len(body), nil
}
