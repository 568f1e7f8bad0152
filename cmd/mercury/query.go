package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/mercury/pkg/diag"
	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/rdf/nquads"
	"github.com/cuemby/mercury/pkg/rdf/ntriples"
	"github.com/cuemby/mercury/pkg/sparql/ast"
	"github.com/cuemby/mercury/pkg/sparql/exec"
	"github.com/cuemby/mercury/pkg/sparql/parser"
	"github.com/cuemby/mercury/pkg/sparql/result"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a SPARQL query or update against a store",
}

var queryRunCmd = &cobra.Command{
	Use:   "run <dir> [file]",
	Short: "Parse and execute a SPARQL query or update; reads from stdin if no file is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		format, _ := cmd.Flags().GetString("format")
		update, _ := cmd.Flags().GetBool("update")

		src, err := readQuerySource(args)
		if err != nil {
			return err
		}

		s, err := mstore.Open(args[0], name, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		bag := &diag.Bag{}
		p := parser.New(src, bag)

		if update {
			req, err := p.ParseUpdate()
			if err != nil {
				return fmt.Errorf("parse update: %w", err)
			}
			ex, err := exec.NewExecutor(s, req.Prologue, time.Now().UnixNano(), nil, nil)
			if err != nil {
				return fmt.Errorf("build executor: %w", err)
			}
			if err := ex.RunUpdate(req, nil); err != nil {
				return fmt.Errorf("run update: %w", err)
			}
			fmt.Println("update applied")
			return nil
		}

		q, err := p.ParseQuery()
		if err != nil {
			return fmt.Errorf("parse query: %w", err)
		}
		parser.Check(q, bag)
		if bag.HasErrors() {
			bag.WriteTerminal(os.Stderr)
			return fmt.Errorf("query failed semantic checks")
		}

		ex, err := exec.NewExecutor(s, q.Prologue, time.Now().UnixNano(), q.Temporal, nil)
		if err != nil {
			return fmt.Errorf("build executor: %w", err)
		}
		res, err := ex.Run(q)
		if err != nil {
			return fmt.Errorf("run query: %w", err)
		}
		return writeResult(os.Stdout, res, format)
	},
}

func readQuerySource(args []string) (string, error) {
	if len(args) == 2 {
		b, err := os.ReadFile(args[1])
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read query from stdin: %w", err)
	}
	return string(b), nil
}

func writeResult(w io.Writer, res *exec.Result, format string) error {
	triples := res.Form == ast.Construct || res.Form == ast.Describe
	switch strings.ToLower(format) {
	case "", "json":
		if triples {
			return result.WriteConstruct(nquads.NewWriter(w), res)
		}
		if res.Form == ast.Ask {
			return result.WriteAskJSON(w, res)
		}
		return result.WriteSelectJSON(w, res)
	case "csv":
		return result.WriteSelectCSV(w, res)
	case "tsv":
		return result.WriteSelectTSV(w, res)
	case "xml":
		if res.Form == ast.Ask {
			return result.WriteAskXML(w, res)
		}
		return result.WriteSelectXML(w, res)
	case "bool":
		return result.WriteAskPlain(w, res)
	case "ntriples":
		return result.WriteConstruct(ntriples.NewWriter(w), res)
	case "nquads":
		return result.WriteConstruct(nquads.NewWriter(w), res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func init() {
	queryRunCmd.Flags().String("name", "default", "Store slot name")
	queryRunCmd.Flags().String("format", "json", "Output format: json, csv, tsv, xml, bool, ntriples, nquads")
	queryRunCmd.Flags().Bool("update", false, "Parse the input as a SPARQL Update request instead of a query")
	queryCmd.AddCommand(queryRunCmd)
}
