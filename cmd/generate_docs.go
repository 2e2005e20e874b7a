package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/google"
	"github.com/teemow/mcp-gmail/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := toolsMarkdown(cmd.Context())
			if err != nil {
				return err
			}
			if outputFile == "" {
				_, err := io.WriteString(cmd.OutOrStdout(), markdown)
				return err
			}
			if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to: %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// toolsMarkdown registers every tool against a server without credentials
// and renders the catalogue.
func toolsMarkdown(ctx context.Context) (string, error) {
	cfg := &config.Config{
		UserID:          config.DefaultUserID,
		MaxResults:      config.DefaultMaxResults,
		AttachmentDir:   config.DefaultAttachmentDir,
		HandleCacheSize: 1,
	}
	sc, err := server.NewServerContext(ctx, server.Options{
		Config: cfg,
		Tokens: google.StaticTokenProvider{Token: &oauth2.Token{}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() { _ = sc.Shutdown() }()

	mcpSrv, err := newMCPServer(sc, sc.Logger(), false)
	if err != nil {
		return "", err
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	return generateToolsMarkdown(tools), nil
}

// toolCategories is the order categories appear in the reference.
var toolCategories = []string{
	"Message Tools",
	"Compose Tools",
	"Label Tools",
	"Attachment Tools",
	"Account Tools",
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	byCategory := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := toolCategory(tool.Name)
		byCategory[category] = append(byCategory[category], tool)
	}

	var sb strings.Builder
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document lists every tool available when running `mcp-gmail serve`.\n")
	sb.WriteString("Tools that change the mailbox are not registered with `--read-only`.\n\n")
	sb.WriteString("**Note:** This file is generated by `mcp-gmail generate-docs`. Do not edit it by hand.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range toolCategories {
		if len(byCategory[category]) == 0 {
			continue
		}
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s) (%d)\n", category, anchor, len(byCategory[category]))
	}

	sb.WriteString("\n## Multi-Account Support\n\n")
	sb.WriteString("Every tool accepts an optional `account` parameter naming a key in the token store:\n\n")
	sb.WriteString("- **Default behavior:** If `account` is omitted, the default account is used\n")
	sb.WriteString("- **Multiple accounts:** Authorize more accounts with `mcp-gmail auth --account work`\n")
	sb.WriteString("- **Discovery:** `list_accounts` returns the accounts with stored credentials\n\n")

	for _, category := range toolCategories {
		categoryTools := byCategory[category]
		if len(categoryTools) == 0 {
			continue
		}
		slices.SortFunc(categoryTools, func(a, b mcp.Tool) int {
			return strings.Compare(a.Name, b.Name)
		})

		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, tool := range categoryTools {
			writeToolMarkdown(&sb, tool)
		}
	}

	return sb.String()
}

func toolCategory(name string) string {
	switch {
	case strings.Contains(name, "attachment"):
		return "Attachment Tools"
	case strings.Contains(name, "account"):
		return "Account Tools"
	case strings.Contains(name, "label"), strings.Contains(name, "trash"), name == "mark_message_read":
		return "Label Tools"
	case strings.Contains(name, "draft"),
		strings.HasPrefix(name, "compose_"),
		strings.HasPrefix(name, "send_"),
		strings.HasPrefix(name, "reply_"):
		return "Compose Tools"
	default:
		return "Message Tools"
	}
}

// writeToolMarkdown renders one tool: heading, description and its
// arguments in name order.
func writeToolMarkdown(sb *strings.Builder, tool mcp.Tool) {
	fmt.Fprintf(sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(sb, "%s\n\n", tool.Description)
	}
	if ro := tool.Annotations.ReadOnlyHint; ro != nil && *ro {
		sb.WriteString("*Read-only.*\n\n")
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return
	}

	sb.WriteString("**Arguments:**\n")
	for _, name := range slices.Sorted(maps.Keys(props)) {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}

		requirement := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			requirement = "required"
		}

		desc, _ := prop["description"].(string)
		if desc == "" {
			typ, _ := prop["type"].(string)
			if typ == "" {
				typ = "any"
			}
			desc = typ + " parameter"
		}
		fmt.Fprintf(sb, "- `%s` (%s): %s\n", name, requirement, desc)
	}
	sb.WriteString("\n")
}
