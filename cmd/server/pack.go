// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cartotile/internal/backends/archive"
	"github.com/tomtom215/cartotile/internal/source"
)

func newPackCommand() *cobra.Command {
	var opts archive.PackOptions
	var encoding string

	cmd := &cobra.Command{
		Use:   "pack <tile-directory> <archive-directory>",
		Short: "Pack a {z}/{x}/{y} tile directory into an archive source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := source.ParseEncoding(encoding)
			if err != nil {
				return err
			}
			opts.Encoding = enc
			return runPack(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Name, "name", "", "source name stored in the archive")
	f.StringVar(&opts.Description, "description", "", "source description")
	f.StringVar(&opts.Attribution, "attribution", "", "attribution HTML")
	f.StringVar(&encoding, "encoding", "", "content encoding of the stored tiles (gzip or empty)")
	return cmd
}

func runPack(ctx context.Context, out io.Writer, src, dst string, opts archive.PackOptions) error {
	w, err := archive.Create(dst)
	if err != nil {
		return err
	}
	res, err := archive.Pack(ctx, src, w, opts)
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "packed %d %s tiles, zoom %d-%d, into %s\n", res.Tiles, res.Format, res.MinZoom, res.MaxZoom, dst)
	return nil
}
