// Package searchcmder provides the search command for fused memory retrieval.
package searchcmder

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/cmd/recall/runtime"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/engine"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	cardStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const searchLongDesc string = `Search stored memories.

Fuses three retrieval channels: structured cards that answer the question
directly, semantic similarity over embeddings, and keyword search over
expanded query terms. Authoritative card answers always rank first.

Use --quiet to output only memory IDs, one per line.

Examples:
  recall search "我住在哪里"
  recall search "what do I like to drink" --top-k 5
  recall search "where do I live" --scope alice --quiet`

const searchShortDesc string = "Search stored memories"

type searchCommander struct {
	query string
	scope string
	topK  int
	quiet bool

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.DefaultFlagSet(), []string{
				config.FlagSQLite,
				config.FlagVectorPersist,
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagTopK,
			})

			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.scope, err = cmd.Flags().GetString("scope")
			if err != nil {
				return fmt.Errorf("could not get scope flag: %w", err)
			}

			return cmder.run(cmd)
		},
	}

	fs := config.DefaultFlagSet()
	config.AddStringFlag(cmd, fs, config.FlagSQLite, new(string))
	config.AddStringFlag(cmd, fs, config.FlagVectorPersist, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, new(string))
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, new(string))
	config.AddIntFlag(cmd, fs, config.FlagTopK, &cmder.topK)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only memory IDs, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	rt, err := runtime.Build(runtime.OptionsFromViper(c.viper), c.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	topK := c.viper.GetInt("search.top_k")
	results, err := rt.Engine.SearchEnhanced(cmd.Context(), c.scope, c.query, nil, topK)
	if err != nil {
		return fmt.Errorf("searching memories: %w", err)
	}

	if len(results) == 0 {
		if !c.quiet {
			fmt.Println("No memories found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range results {
			fmt.Println(result.Fact.ID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Memories for:"),
		previewStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	for i, result := range results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result engine.Result) {
	sources := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		sources = append(sources, string(s))
	}

	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		dimStyle.Render(strings.Join(sources, ",")),
	)

	preview := strings.ReplaceAll(utils.Truncate(result.Fact.Summary, 80), "\n", " ")
	fmt.Printf("  %s\n", previewStyle.Render(preview))

	if result.Card != nil {
		fmt.Printf("  %s %s\n",
			cardStyle.Render(result.Card.Entity+"."+result.Card.Slot+":"),
			previewStyle.Render(result.Card.Value),
		)
	}

	if result.Fact.ReinforcementCount > 0 {
		fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("reinforced %dx", result.Fact.ReinforcementCount)))
	}

	fmt.Println()
}
