package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"tabq/pipeline"
	"tabq/spec"
)

// stageDef is one stage in a pipeline definition file. Only the fields
// relevant to Op are set; lists keep the file's order.
type stageDef struct {
	Op      string    `yaml:"op"`
	Columns []string  `yaml:"columns,omitempty"`
	Exprs   []exprDef `yaml:"exprs,omitempty"`
	Expr    string    `yaml:"expr,omitempty"`
	Keys    []keyDef  `yaml:"keys,omitempty"`
}

type exprDef struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

type keyDef struct {
	Column string `yaml:"column"`
	Dir    string `yaml:"dir,omitempty"`
}

type pipelineFile struct {
	Stages []stageDef `yaml:"stages"`
}

// readPipeline decodes a definition file and feeds it through the stage
// builder against the loaded table's schema.
func readPipeline(path string, schema spec.Schema) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var file pipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}

	p := pipeline.New(schema)
	for i, def := range file.Stages {
		p, err = appendStage(p, def)
		if err != nil {
			return nil, fmt.Errorf("%s: stage %d: %w", path, i, err)
		}
	}
	return p, nil
}

func appendStage(p *pipeline.Pipeline, def stageDef) (*pipeline.Pipeline, error) {
	switch def.Op {
	case "group_by":
		cols, err := spec.MakeColumns(def.Columns...)
		if err != nil {
			return nil, err
		}
		return p.GroupBy(cols...)
	case "summarize":
		exprs, err := makeExprs(def.Exprs)
		if err != nil {
			return nil, err
		}
		return p.Summarize(exprs...)
	case "select":
		cols, err := spec.MakeColumns(def.Columns...)
		if err != nil {
			return nil, err
		}
		return p.Select(cols...)
	case "mutate":
		exprs, err := makeExprs(def.Exprs)
		if err != nil {
			return nil, err
		}
		return p.Mutate(exprs...)
	case "filter":
		return p.Filter(def.Expr)
	case "arrange":
		keys := make([]spec.SortKey, len(def.Keys))
		for i, k := range def.Keys {
			dir, err := parseDir(k.Dir)
			if err != nil {
				return nil, err
			}
			key, err := spec.MakeSortKey(k.Column, dir)
			if err != nil {
				return nil, err
			}
			keys[i] = key
		}
		return p.Arrange(keys...)
	case "ungroup":
		return p.Ungroup(), nil
	default:
		return nil, fmt.Errorf("unknown stage op %q", def.Op)
	}
}

func makeExprs(defs []exprDef) ([]spec.NamedExpression, error) {
	exprs := make([]spec.NamedExpression, len(defs))
	for i, d := range defs {
		e, err := spec.MakeNamedExpression(d.Name, d.Expr)
		if err != nil {
			return nil, err
		}
		exprs[i] = e
	}
	return exprs, nil
}

func parseDir(s string) (spec.Direction, error) {
	switch s {
	case "", "asc":
		return spec.Asc, nil
	case "desc":
		return spec.Desc, nil
	default:
		return spec.Asc, fmt.Errorf("invalid sort direction %q (want asc or desc)", s)
	}
}
