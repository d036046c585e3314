package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/druarnfield/mantis-core-sub001/internal/graph"
	"github.com/druarnfield/mantis-core-sub001/internal/model"
	"github.com/druarnfield/mantis-core-sub001/internal/statstore"
)

// LoadMode controls how errors are handled during model loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading a semantic model directory.
type LoadResult struct {
	Graph          *graph.Graph
	EntityCount    int
	MeasureCount   int
	ReferenceCount int
	FileCount      int // Number of CUE files found
}

// LoadError represents an error that occurred during model loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadModel loads CUE model definitions from a directory and builds the
// frozen dependency graph. Entities live under the top-level "entity"
// struct, with nested "column" and "measure" structs; relationships live
// under "relationship". When stats is non-nil, snapshot row counts and
// distinct counts fill in whatever the model leaves unhinted.
func LoadModel(dir string, stats *statstore.Stats, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing model directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	b := graph.NewBuilder()

	entitiesVal := value.LookupPath(cue.ParsePath("entity"))
	if entitiesVal.Exists() {
		iter, iterErr := entitiesVal.Fields()
		if iterErr != nil {
			return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", iterErr)}}
		}
		for iter.Next() {
			entityErrs := loadEntity(b, iter.Label(), iter.Value(), stats, result)
			errs = append(errs, entityErrs...)
			if len(errs) > 0 && mode == LoadModeFailFast {
				return result, errs
			}
		}
	}

	relsVal := value.LookupPath(cue.ParsePath("relationship"))
	if relsVal.Exists() {
		iter, iterErr := relsVal.Fields()
		if iterErr != nil {
			return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating relationships: %v", iterErr)}}
		}
		for iter.Next() {
			if relErr := loadRelationship(b, iter.Label(), iter.Value(), result); relErr != nil {
				errs = append(errs, relErr)
				if mode == LoadModeFailFast {
					return result, errs
				}
			}
		}
	}

	if result.EntityCount == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities found in model"})
	}
	if len(errs) > 0 {
		return result, errs
	}

	g, buildErr := b.Build()
	if buildErr != nil {
		return result, []error{&LoadError{Code: ErrCodeGraphBuild, Message: fmt.Sprintf("building graph: %v", buildErr)}}
	}
	result.Graph = g
	return result, nil
}

// loadEntity decodes one entity struct into the builder: the entity itself,
// then its columns and measures.
func loadEntity(b *graph.Builder, name string, v cue.Value, stats *statstore.Stats, result *LoadResult) []error {
	var errs []error

	e := model.Entity{Name: name, Source: name, Kind: model.KindDimension, Size: model.SizeUnknown}
	if s, ok := lookupString(v, "source"); ok {
		e.Source = s
	}
	if s, ok := lookupString(v, "kind"); ok {
		switch model.EntityKind(s) {
		case model.KindFact, model.KindDimension:
			e.Kind = model.EntityKind(s)
		default:
			errs = append(errs, &LoadError{
				Code:    ErrCodeInvalidKind,
				Message: fmt.Sprintf("entity %s: invalid kind %q (want fact or dimension)", name, s),
				Pos:     v.Pos(),
			})
		}
	}
	if s, ok := lookupString(v, "size"); ok {
		switch model.SizeCategory(s) {
		case model.SizeSmall, model.SizeMedium, model.SizeLarge, model.SizeUnknown:
			e.Size = model.SizeCategory(s)
		default:
			errs = append(errs, &LoadError{
				Code:    ErrCodeInvalidSize,
				Message: fmt.Sprintf("entity %s: invalid size %q", name, s),
				Pos:     v.Pos(),
			})
		}
	}
	if rowsVal := v.LookupPath(cue.ParsePath("rows")); rowsVal.Exists() {
		n, err := rowsVal.Int64()
		if err != nil || n < 0 {
			errs = append(errs, &LoadError{
				Code:    ErrCodeInvalidRows,
				Message: fmt.Sprintf("entity %s: rows must be a non-negative integer", name),
				Pos:     rowsVal.Pos(),
			})
		} else {
			e.RowCount = n
			e.RowCountKnown = true
		}
	}
	if stats != nil {
		stats.ApplyEntity(&e)
	}
	b.AddEntity(e)
	result.EntityCount++

	colsVal := v.LookupPath(cue.ParsePath("column"))
	if colsVal.Exists() {
		iter, iterErr := colsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("entity %s: iterating columns: %v", name, iterErr)})
			return errs
		}
		for iter.Next() {
			c := model.Column{Entity: name, Name: iter.Label()}
			if s, ok := lookupString(iter.Value(), "type"); ok {
				c.Type = s
			}
			if s, ok := lookupString(iter.Value(), "cardinality"); ok {
				switch model.CardinalityHint(s) {
				case model.CardinalityHigh, model.CardinalityLow, model.CardinalityUnknown:
					c.Cardinality = model.CardinalityHint(s)
				default:
					errs = append(errs, &LoadError{
						Code:    ErrCodeInvalidCardinality,
						Message: fmt.Sprintf("column %s.%s: invalid cardinality %q (want high, low or unknown)", name, iter.Label(), s),
						Pos:     iter.Value().Pos(),
					})
				}
			}
			if stats != nil {
				stats.ApplyColumn(&c, e.Source, statstore.DefaultCardinalityThreshold)
			}
			b.AddColumn(c)
		}
	}

	measuresVal := v.LookupPath(cue.ParsePath("measure"))
	if measuresVal.Exists() {
		iter, iterErr := measuresVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("entity %s: iterating measures: %v", name, iterErr)})
			return errs
		}
		for iter.Next() {
			expr, err := iter.Value().String()
			if err != nil {
				errs = append(errs, &LoadError{
					Code:    ErrCodeInvalidMeasure,
					Message: fmt.Sprintf("measure %s.%s: expression must be a string", name, iter.Label()),
					Pos:     iter.Value().Pos(),
				})
				continue
			}
			if _, err := model.ParseExpr(expr); err != nil {
				errs = append(errs, &LoadError{
					Code:    ErrCodeInvalidMeasure,
					Message: fmt.Sprintf("measure %s.%s: %v", name, iter.Label(), err),
					Pos:     iter.Value().Pos(),
				})
				continue
			}
			b.AddMeasure(model.Measure{Entity: name, Name: iter.Label(), Expression: expr})
			result.MeasureCount++
		}
	}

	return errs
}

// loadRelationship decodes one relationship struct into a REFERENCES edge,
// with an optional explicit join cardinality.
func loadRelationship(b *graph.Builder, name string, v cue.Value, result *LoadResult) error {
	fromStr, ok := lookupString(v, "from")
	if !ok {
		return &LoadError{
			Code:    ErrCodeInvalidReference,
			Message: fmt.Sprintf("relationship %s: missing from column", name),
			Pos:     v.Pos(),
		}
	}
	toStr, ok := lookupString(v, "to")
	if !ok {
		return &LoadError{
			Code:    ErrCodeInvalidReference,
			Message: fmt.Sprintf("relationship %s: missing to column", name),
			Pos:     v.Pos(),
		}
	}

	from, err := model.ParseColumnRef(fromStr)
	if err != nil || from.Entity == "" {
		return &LoadError{
			Code:    ErrCodeInvalidReference,
			Message: fmt.Sprintf("relationship %s: from must be entity.column, got %q", name, fromStr),
			Pos:     v.Pos(),
		}
	}
	to, err := model.ParseColumnRef(toStr)
	if err != nil || to.Entity == "" {
		return &LoadError{
			Code:    ErrCodeInvalidReference,
			Message: fmt.Sprintf("relationship %s: to must be entity.column, got %q", name, toStr),
			Pos:     v.Pos(),
		}
	}

	prov := graph.ProvenanceExplicit
	if s, ok := lookupString(v, "provenance"); ok {
		switch graph.Provenance(s) {
		case graph.ProvenanceForeignKey, graph.ProvenanceStatistical, graph.ProvenanceExplicit:
			prov = graph.Provenance(s)
		default:
			return &LoadError{
				Code:    ErrCodeInvalidReference,
				Message: fmt.Sprintf("relationship %s: invalid provenance %q", name, s),
				Pos:     v.Pos(),
			}
		}
	}

	confidence := 1.0
	if confVal := v.LookupPath(cue.ParsePath("confidence")); confVal.Exists() {
		c, err := confVal.Float64()
		if err != nil || c < 0 || c > 1 {
			return &LoadError{
				Code:    ErrCodeInvalidReference,
				Message: fmt.Sprintf("relationship %s: confidence must be in [0, 1]", name),
				Pos:     confVal.Pos(),
			}
		}
		confidence = c
	}

	b.AddReference(from, to, prov, confidence)
	result.ReferenceCount++

	if s, ok := lookupString(v, "cardinality"); ok {
		switch model.JoinCardinality(s) {
		case model.OneToOne, model.OneToMany, model.ManyToOne, model.ManyToMany:
			b.Relate(from.Entity, to.Entity, model.JoinCardinality(s))
		default:
			return &LoadError{
				Code:    ErrCodeInvalidJoinCard,
				Message: fmt.Sprintf("relationship %s: invalid cardinality %q (want 1:1, 1:N, N:1 or N:M)", name, s),
				Pos:     v.Pos(),
			}
		}
	}
	return nil
}

// lookupString reads an optional string field from a CUE struct.
func lookupString(v cue.Value, field string) (string, bool) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false
	}
	s, err := fv.String()
	if err != nil {
		return "", false
	}
	return s, true
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeGraphBuild  = "E008" // Graph freeze failed
	ErrCodeStatsFailed = "E009" // Statistics snapshot unreadable

	// Model validation errors
	ErrCodeInvalidKind        = "E101" // Invalid entity kind
	ErrCodeInvalidSize        = "E102" // Invalid size category
	ErrCodeInvalidRows        = "E103" // Invalid row count
	ErrCodeInvalidCardinality = "E104" // Invalid column cardinality hint
	ErrCodeInvalidMeasure     = "E105" // Unparsable measure expression
	ErrCodeInvalidReference   = "E106" // Malformed relationship
	ErrCodeInvalidJoinCard    = "E107" // Invalid join cardinality

	// Report validation errors
	ErrCodeReportParse   = "E111" // Report YAML unparsable
	ErrCodeReportInvalid = "E112" // Report semantically invalid

	// Compilation errors
	ErrCodePlanFailed = "E121" // Planning failed
)
