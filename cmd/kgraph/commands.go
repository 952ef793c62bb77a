package main

import (
	"strings"

	"github.com/siherrmann/kgraph/core/graph"
	"github.com/siherrmann/kgraph/model"
	"github.com/spf13/cobra"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Resolve a JSON array of mentions into entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		sources, _ := cmd.Flags().GetStringSlice("source")

		mentions, err := readBatch[model.Mention](file, cmd.InOrStdin())
		if err != nil {
			return err
		}

		g, err := openGraph()
		if err != nil {
			return err
		}
		defer g.Close()

		result, err := g.BuildEntities(cmd.Context(), mentions, sources)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Materialize a JSON array of relationship candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		sources, _ := cmd.Flags().GetStringSlice("source")
		verify, _ := cmd.Flags().GetBool("verify")

		candidates, err := readBatch[model.RelationshipCandidate](file, cmd.InOrStdin())
		if err != nil {
			return err
		}

		g, err := openGraph()
		if err != nil {
			return err
		}
		defer g.Close()

		result, err := g.BuildEdges(cmd.Context(), candidates, sources, model.EdgeBuildOptions{VerifyEndpoints: verify})
		if result != nil {
			// A rejected batch still reports the missing entity ids.
			if writeErr := writeJSON(cmd.OutOrStdout(), result); writeErr != nil && err == nil {
				err = writeErr
			}
		}
		return err
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Compute and store PageRank scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, _ := cmd.Flags().GetStringSlice("source")
		top, _ := cmd.Flags().GetInt("top")

		g, err := openGraph()
		if err != nil {
			return err
		}
		defer g.Close()

		result, err := g.ComputeRanks(cmd.Context(), model.RankOptions{Sources: sources})
		if err != nil {
			return err
		}
		if top > 0 && len(result.Ranked) > top {
			result.Ranked = result.Ranked[:top]
		}
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a natural language question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := model.QueryRequest{Question: strings.Join(args, " ")}
		if cmd.Flags().Changed("max-hops") {
			hops, _ := cmd.Flags().GetInt("max-hops")
			req.MaxHops = &hops
		}
		if cmd.Flags().Changed("limit") {
			limit, _ := cmd.Flags().GetInt("limit")
			req.ResultLimit = &limit
		}

		g, err := openGraph()
		if err != nil {
			return err
		}
		defer g.Close()

		response, err := g.Query(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), response)
	},
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors [entity-id]",
	Short: "List the entities one relationship away",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		incoming, _ := cmd.Flags().GetBool("incoming")
		types, _ := cmd.Flags().GetStringSlice("type")

		g, err := openGraph()
		if err != nil {
			return err
		}
		defer g.Close()

		neighbors, err := g.Neighbors(cmd.Context(), args[0], graph.TraversalOptions{
			RelationshipTypes: types,
			FollowIncoming:    incoming,
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), neighbors)
	},
}

func init() {
	entitiesCmd.Flags().StringP("file", "f", "-", "JSON file of mentions, - for stdin")
	entitiesCmd.Flags().StringSlice("source", nil, "source reference added to every entity")

	edgesCmd.Flags().StringP("file", "f", "-", "JSON file of relationship candidates, - for stdin")
	edgesCmd.Flags().StringSlice("source", nil, "source reference added to every relationship")
	edgesCmd.Flags().Bool("verify", false, "reject the batch if any endpoint entity is missing")

	rankCmd.Flags().StringSlice("source", nil, "rank only entities and relationships of these sources")
	rankCmd.Flags().Int("top", 0, "print only the top n entities")

	queryCmd.Flags().Int("max-hops", 0, "maximum hops from the seed entities")
	queryCmd.Flags().Int("limit", 0, "maximum number of results")

	neighborsCmd.Flags().Bool("incoming", true, "also follow incoming relationships")
	neighborsCmd.Flags().StringSlice("type", nil, "only follow these relationship types")
}
