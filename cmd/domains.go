package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tabcanvas/internal/site"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

var domainsJSON bool

var domainsCmd = &cobra.Command{
	Use:   "domains [site.yml]",
	Short: "List the domains embeds may load from",
	Long: `List the effective embed allow-list: the built-in trusted domains, the
embed.additional_domains setting and the embed_domains of the site file.
Subdomains of every listed domain are allowed as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDomains,
}

func init() {
	rootCmd.AddCommand(domainsCmd)
	domainsCmd.Flags().BoolVar(&domainsJSON, "json", false, "Output as a JSON array")
}

func runDomains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	domains := append([]string(nil), cfg.Embed.AdditionalDomains...)
	if _, statErr := os.Stat(cfg.Site.Path); statErr == nil {
		st, err := site.Load(cfg.Site.Path)
		if err != nil {
			return err
		}
		domains = append(domains, st.EmbedDomains...)
	}

	allow, err := validation.NewAllowList(domains...)
	if err != nil {
		logger.Warn(cmd.Context(), err, "Ignoring invalid embed domains")
	}

	out := cmd.OutOrStdout()
	if domainsJSON {
		return json.NewEncoder(out).Encode(allow.Domains())
	}
	for _, d := range allow.Domains() {
		fmt.Fprintln(out, d)
	}
	return nil
}
