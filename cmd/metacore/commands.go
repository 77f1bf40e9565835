package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"metacore/internal/core"
	"metacore/internal/tabular"
	"metacore/pkg/domain"
)

func newTableCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "table", Short: "Create, list and delete metadata tables"}

	var (
		id, name, description   string
		ownerKind, ownerID      string
		pooledCol, sourceColumn string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a metadata table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := domain.ParseOwnerKind(ownerKind)
			if err != nil {
				return err
			}
			table := domain.Table{
				Base:             domain.Base{ID: id},
				Name:             name,
				Description:      description,
				PooledColumn:     pooledCol,
				SourceNameColumn: sourceColumn,
			}
			if ownerID != "" {
				table.Owner = domain.Owner{Kind: kind, ID: ownerID}
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				created, res, err := a.service.CreateTable(ctx, table)
				reportViolations(cmd, res)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "Table ID (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "Table name")
	create.Flags().StringVar(&description, "description", "", "Table description")
	create.Flags().StringVar(&ownerKind, "owner-kind", string(domain.OwnerUser), "Owner kind: user, lab_group or instrument_job")
	create.Flags().StringVar(&ownerID, "owner-id", "", "Owner ID (defaults to the acting user)")
	create.Flags().StringVar(&pooledCol, "pooled-column", "", "Header of the pooled-sample column")
	create.Flags().StringVar(&sourceColumn, "source-name-column", "", "Header of the source-name column")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tables visible to the actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				tables, err := a.service.ListTables(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tOWNER")
				for _, t := range tables {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s:%s\n", t.ID, t.Name, t.SampleCount, t.Owner.Kind, t.Owner.ID)
				}
				return w.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <table-id>",
		Short: "Delete a table with its columns and pools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				res, err := a.service.DeleteTable(ctx, args[0])
				reportViolations(cmd, res)
				return err
			})
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	var blobKey string
	cmd := &cobra.Command{
		Use:   "import <table-id> [file]",
		Short: "Import a delimited or XLS sheet into a table",
		Long: `Import replaces the table's content with the given sheet. The first row is
the header. Compressed input (gzip, zstd) is detected from content; .xls
files are read from their first sheet.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tableID := args[0]
			if (len(args) == 2) == (blobKey != "") {
				return errors.New("import: give either a file or --blob")
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				var (
					report core.ImportReport
					res    domain.Result
					err    error
				)
				if blobKey != "" {
					report, res, err = a.service.ImportFromBlob(ctx, tableID, blobKey)
				} else {
					var rows [][]string
					rows, err = readSheet(args[1])
					if err != nil {
						return err
					}
					report, res, err = a.service.ImportTable(ctx, tableID, rows)
				}
				reportViolations(cmd, res)
				if err != nil {
					return err
				}
				printImportReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&blobKey, "blob", "", "Import a previously uploaded object instead of a local file")
	return cmd
}

func readSheet(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return tabular.Read(f, filepath.Base(path))
}

func printImportReport(w io.Writer, r core.ImportReport) {
	plan := r.Pools.Plan
	fmt.Fprintf(w, "table %s: %d samples, %d columns\n", r.TableID, r.SampleCount, r.Columns)
	fmt.Fprintf(w, "pools: %d created, %d updated, %d deleted, %d unchanged\n",
		len(plan.Created), len(plan.Updated), len(plan.Deleted), len(plan.Unchanged))
	if len(r.Pools.Unresolved) > 0 {
		fmt.Fprintf(w, "unresolved source names: %s\n", strings.Join(r.Pools.Unresolved, ", "))
	}
}

func newUploadCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <table-id> <file>",
		Short: "Store a source file for a table in the blob store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				info, err := a.service.UploadSource(ctx, args[0], filepath.Base(args[1]), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", info.Key, info.Size)
				return nil
			})
		},
	}
}

func newResolveCmd(flags *globalFlags) *cobra.Command {
	var includeHidden bool
	var column string
	cmd := &cobra.Command{
		Use:   "resolve <table-id>",
		Short: "Print the table's per-sample values as TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if column != "" {
					values, err := a.service.ResolveColumn(ctx, column)
					if err != nil {
						return err
					}
					for i, v := range values {
						fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, v)
					}
					return nil
				}
				rows, err := a.service.ResolveTable(ctx, args[0], includeHidden)
				if err != nil {
					return err
				}
				return tabular.WriteTSV(cmd.OutOrStdout(), rows, tabular.CompressionNone)
			})
		},
	}
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "Include hidden columns")
	cmd.Flags().StringVar(&column, "column", "", "Resolve a single column by ID")
	return cmd
}

func newColumnsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns <table-id>",
		Short: "List a table's columns with their defaults and modifiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				cols, err := a.service.ListColumns(ctx, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPOS\tNAME\tDEFAULT\tMODIFIERS\tHIDDEN")
				for _, c := range cols {
					mods := make([]string, 0, len(c.Modifiers))
					for _, m := range c.Modifiers {
						mods = append(mods, m.Samples+"="+m.Value)
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%t\n", c.ID, c.Position, c.Name, c.DefaultValue, strings.Join(mods, "; "), c.Hidden)
				}
				return w.Flush()
			})
		},
	}

	hide := &cobra.Command{
		Use:   "hide <column-id> <true|false>",
		Short: "Hide or show a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hidden, err := strconv.ParseBool(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				_, res, err := a.service.SetColumnHidden(ctx, args[0], hidden)
				reportViolations(cmd, res)
				return err
			})
		},
	}

	var colType, defaultValue string
	add := &cobra.Command{
		Use:   "add <table-id> <name>",
		Short: "Append a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				col, res, err := a.service.AddColumn(ctx, args[0], domain.Column{Name: args[1], Type: colType, DefaultValue: defaultValue})
				reportViolations(cmd, res)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), col.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&colType, "type", "", "Column type (derived from the name when empty)")
	add.Flags().StringVar(&defaultValue, "default", "", "Default value")

	remove := &cobra.Command{
		Use:   "remove <column-id>",
		Short: "Remove a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				res, err := a.service.RemoveColumn(ctx, args[0])
				reportViolations(cmd, res)
				return err
			})
		},
	}

	cmd.AddCommand(hide, add, remove)
	return cmd
}

func newReplaceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "replace <column-id> <old-value> <new-value>",
		Short: "Replace every occurrence of a value in a column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				summary, res, err := a.service.ReplaceValue(ctx, args[0], args[1], args[2])
				reportViolations(cmd, res)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "merged %d, deleted %d, created %d modifiers; %d samples reverted to default; default changed: %t\n",
					summary.ModifiersMerged, summary.ModifiersDeleted, summary.ModifiersCreated,
					summary.SamplesRevertedToDefault, summary.DefaultChanged)
				return nil
			})
		},
	}
}

func newPoolsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools <table-id>",
		Short: "List a table's sample pools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				pools, err := a.service.ListPools(ctx, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPOOLED_ONLY\tPOOLED_AND_INDEPENDENT\tREFERENCE\tSDRF")
				for _, p := range pools {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", p.ID, p.Name,
						joinInts(p.PooledOnlySamples), joinInts(p.PooledAndIndependentSamples), p.IsReference, p.SDRFValue)
				}
				return w.Flush()
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync <table-id>",
		Short: "Re-derive pools from the table's stored columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				report, res, err := a.service.SynchronizePools(ctx, args[0])
				reportViolations(cmd, res)
				if err != nil {
					return err
				}
				printImportReport(cmd.OutOrStdout(), core.ImportReport{TableID: args[0], Pools: report})
				return nil
			})
		},
	})
	return cmd
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var compression string
	cmd := &cobra.Command{
		Use:   "export <table-id>",
		Short: "Write the table's visible columns to the blob store as TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				comp := a.cfg.ExportCompression()
				if cmd.Flags().Changed("compression") {
					var err error
					if comp, err = tabular.ParseCompression(compression); err != nil {
						return err
					}
				}
				info, err := a.service.ExportTable(ctx, args[0], comp)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", info.Key, info.Size)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&compression, "compression", "", "Output codec: none, gzip or zstd (defaults to configuration)")
	return cmd
}

func newGrantCmd(flags *globalFlags) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "grant <resource-kind> <resource-id> <user> [level]",
		Short: "Grant or revoke a permission",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.ResourceKind(args[0])
			switch kind {
			case domain.ResourceTable, domain.ResourceLabGroup, domain.ResourceInstrumentJob:
			default:
				return fmt.Errorf("unknown resource kind %q", args[0])
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if revoke {
					res, err := a.service.RevokePermission(ctx, domain.PermissionKey{Kind: kind, ResourceID: args[1], User: args[2]})
					reportViolations(cmd, res)
					return err
				}
				if len(args) < 4 {
					return errors.New("grant: level is required")
				}
				level, err := domain.ParsePermissionLevel(args[3])
				if err != nil {
					return err
				}
				res, err := a.service.GrantPermission(ctx, domain.Permission{Kind: kind, ResourceID: args[1], User: args[2], Level: level})
				reportViolations(cmd, res)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Remove the grant instead")
	return cmd
}
