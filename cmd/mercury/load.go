package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/mercury/pkg/mstore"
	"github.com/cuemby/mercury/pkg/mterm"
	"github.com/cuemby/mercury/pkg/rdf/jsonld"
	"github.com/cuemby/mercury/pkg/rdf/nquads"
	"github.com/cuemby/mercury/pkg/rdf/ntriples"
	"github.com/cuemby/mercury/pkg/rdf/rdfio"
	"github.com/cuemby/mercury/pkg/rdf/rdfxml"
	"github.com/cuemby/mercury/pkg/rdf/trig"
	"github.com/cuemby/mercury/pkg/rdf/turtle"
)

var defaultLoadGraph = mterm.IRI("urn:x-mercury:default-graph")

var loadCmd = &cobra.Command{
	Use:   "load <dir> <source>",
	Short: "Decode an RDF document (local path or http(s) URL) and add its quads to a store",
	Long: `load decodes source using the codec selected by its file extension
(.nt, .nq, .ttl, .trig, .rdf/.xml, .jsonld) and adds every resulting
statement to the store as a current fact, valid from now onward.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		graphIRI, _ := cmd.Flags().GetString("graph")

		decode, err := decoderFor(args[1])
		if err != nil {
			return err
		}

		r, closeFn, err := openSource(args[1])
		if err != nil {
			return err
		}
		defer closeFn()

		s, err := mstore.Open(args[0], name, logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		graph := defaultLoadGraph
		if graphIRI != "" {
			graph = mterm.IRI(graphIRI)
		}

		if err := s.BeginBatch(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		now := time.Now().UnixNano()
		count := 0
		err = decode(r, func(q rdfio.Quad) error {
			g := graph
			if q.G.Kind != mterm.KindInvalid {
				g = q.G
			}
			if err := s.AddBatched(q.S, q.P, q.O, g, now, mterm.Forever); err != nil {
				return err
			}
			count++
			return nil
		})
		if err != nil {
			s.RollbackBatch()
			return fmt.Errorf("decode %s: %w", args[1], err)
		}
		if err := s.CommitBatch(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		fmt.Printf("loaded %d statements from %s\n", count, args[1])
		return nil
	},
}

func decoderFor(source string) (rdfio.Decoder, error) {
	ext := strings.ToLower(filepath.Ext(stripQuery(source)))
	switch ext {
	case ".nt":
		return ntriples.Decode, nil
	case ".nq":
		return nquads.Decode, nil
	case ".ttl":
		return turtle.Decode, nil
	case ".trig":
		return trig.Decode, nil
	case ".rdf", ".xml":
		return rdfxml.Decode, nil
	case ".jsonld":
		return jsonld.Decode, nil
	default:
		return nil, fmt.Errorf("cannot infer RDF format from extension %q, expected one of .nt .nq .ttl .trig .rdf .xml .jsonld", ext)
	}
}

func stripQuery(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}

func openSource(source string) (io.Reader, func(), error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, nil, fmt.Errorf("fetch %s: status %s", source, resp.Status)
		}
		return resp.Body, func() { resp.Body.Close() }, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", source, err)
	}
	return f, func() { f.Close() }, nil
}

func init() {
	loadCmd.Flags().String("name", "default", "Store slot name")
	loadCmd.Flags().String("graph", "", "Named graph IRI to load into (defaults to the unnamed default graph)")
}
