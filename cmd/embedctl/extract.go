package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"Embedkit/internal/core/embed"
	"Embedkit/internal/core/imageprobe"
	"Embedkit/internal/core/meta"
	"Embedkit/internal/core/whitelist"
)

var (
	flagWhitelist string
	flagNoProbe   bool
	flagOEmbed    bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Print meta and embed links for a page",
	Args:  cobra.ExactArgs(1),
	RunE:  extractRun,
}

func init() {
	extractCmd.Flags().StringVarP(&flagWhitelist, "whitelist", "w", "", "Whitelist file (default from config)")
	extractCmd.Flags().BoolVar(&flagNoProbe, "no-probe", false, "Skip image probing")
	extractCmd.Flags().BoolVar(&flagOEmbed, "oembed", false, "Print the oEmbed view instead")
}

func extractRun(cmd *cobra.Command, args []string) error {
	engine := newEngine()

	loader, err := meta.NewLoader(engine, meta.WithMaxPageBytes(cfg.MaxPageBytes()))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	wl, err := loadWhitelist(ctx, engine)
	if err != nil {
		return err
	}

	opts := []embed.ServiceOption{embed.WithWhitelist(wl)}
	if cfg.ProbeImages {
		opts = append(opts, embed.WithImageProber(imageprobe.NewProber(engine,
			imageprobe.WithTimeout(cfg.ResponseTimeout.Duration),
		)))
	}
	service, err := embed.NewService(loader, engine, opts...)
	if err != nil {
		return err
	}

	result, err := service.Extract(ctx, args[0], embed.Options{SkipImageProbe: flagNoProbe})
	if err != nil {
		return fmt.Errorf("extracting %s: %w", args[0], err)
	}

	if flagOEmbed {
		return printJSON(cmd.OutOrStdout(), embed.ToOEmbed(result))
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func loadWhitelist(ctx context.Context, engine whitelist.Fetcher) (*whitelist.Store, error) {
	wl := whitelist.NewStore()

	var src whitelist.Source
	switch {
	case flagWhitelist != "":
		src = whitelist.FileSource{Path: flagWhitelist}
	case cfg.WhitelistFile != "":
		src = whitelist.FileSource{Path: cfg.WhitelistFile}
	case cfg.WhitelistURL != "":
		src = whitelist.URLSource{URL: cfg.WhitelistURL, Fetcher: engine}
	default:
		return wl, nil
	}

	if err := wl.Reload(ctx, src); err != nil {
		return nil, fmt.Errorf("loading whitelist: %w", err)
	}
	return wl, nil
}
