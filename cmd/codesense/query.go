package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"codesense/internal/apperr"
	"codesense/internal/assistant"
	"codesense/internal/server"
	"codesense/internal/service"

	"github.com/spf13/cobra"
)

var (
	flagFile     string
	flagChange   string
	flagK        int
	flagLanguage string
)

var usageCmd = &cobra.Command{
	Use:   "usage <project-id> <symbol>",
	Short: "Show the direct callers and callees of a symbol",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			report, err := svc.Usage(ctx, id, args[1], flagFile)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact <project-id> <symbol>",
	Short: "Analyze what breaks if a symbol changes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			report, err := svc.Impact(ctx, id, args[1], flagFile, flagChange)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <project-id> <query>",
	Short: "Semantic search over indexed symbols",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		if flagK <= 0 {
			return fmt.Errorf("%w: --top must be positive", apperr.ErrInputMismatch)
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			matches, err := svc.Search(ctx, id, args[1], flagK)
			if err != nil {
				return err
			}
			return printJSON(matches)
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <project-id> <message>",
	Short: "Ask a question about a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			resp, err := svc.Chat(ctx, id, args[1])
			if err != nil {
				return err
			}
			return printJSON(resp)
		})
	},
}

var explainCmd = &cobra.Command{
	Use:   "explain [file]",
	Short: "Explain a code snippet read from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := assistant.ExplainRequest{Language: flagLanguage}
		var (
			code []byte
			err  error
		)
		if len(args) == 1 {
			req.FilePath = args[0]
			code, err = os.ReadFile(args[0])
		} else {
			code, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		req.Code = string(code)

		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			resp, err := svc.Explain(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(resp)
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tools over MCP on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			return server.New(svc, svc.Logger()).Run(ctx)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{usageCmd, impactCmd} {
		c.Flags().StringVarP(&flagFile, "file", "f", "", "project-relative file defining the symbol")
		_ = c.MarkFlagRequired("file")
	}
	impactCmd.Flags().StringVar(&flagChange, "change", "", "description of the planned change")
	searchCmd.Flags().IntVarP(&flagK, "top", "k", 5, "number of results")
	explainCmd.Flags().StringVar(&flagLanguage, "language", "", "language of the snippet")
}
