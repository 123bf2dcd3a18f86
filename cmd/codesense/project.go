package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"codesense/internal/apperr"
	"codesense/internal/service"

	"github.com/spf13/cobra"
)

var flagDescription string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			p, err := svc.CreateProject(ctx, args[0], flagDescription)
			if err != nil {
				return err
			}
			return printJSON(p)
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			projects, err := svc.ListProjects(ctx)
			if err != nil {
				return err
			}
			return printJSON(projects)
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show one project and what has been indexed for it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			st, err := svc.Status(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(st)
		})
	},
}

var flagIndexAfterImport bool

var importCmd = &cobra.Command{
	Use:   "import <project-id> <zip-or-dir>",
	Short: "Replace a project's source with a zip archive or a local directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		src := args[1]
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			info, err := os.Stat(src)
			if err != nil {
				return err
			}
			isZip := !info.IsDir() && strings.HasSuffix(strings.ToLower(src), ".zip")
			switch {
			case isZip && flagIndexAfterImport:
				res, err := svc.UploadAndIndex(ctx, id, src)
				if err != nil {
					return err
				}
				return printJSON(res)
			case isZip:
				err = svc.ImportArchive(ctx, id, src)
			case info.IsDir():
				err = svc.ImportDir(ctx, id, src)
			default:
				return fmt.Errorf("%w: %s is neither a directory nor a .zip archive", apperr.ErrInputMismatch, src)
			}
			if err != nil {
				return err
			}
			if !flagIndexAfterImport {
				files, err := svc.ListFiles(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"project_id": id, "files": len(files)})
			}
			res, err := svc.IndexProject(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <project-id>",
	Short: "Index a project's imported source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			res, err := svc.IndexProject(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files <project-id>",
	Short: "List the files in a project's source tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			files, err := svc.ListFiles(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(files)
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read <project-id> <path>",
	Short: "Print one file from a project's source tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProjectID(args[0])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			content, err := svc.ReadFile(ctx, id, args[1])
			if err != nil {
				return err
			}
			_, err = os.Stdout.WriteString(content)
			return err
		})
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&flagDescription, "description", "", "free-form project description")
	importCmd.Flags().BoolVar(&flagIndexAfterImport, "index", false, "index the project right after importing")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
}
