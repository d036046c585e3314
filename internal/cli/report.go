package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/druarnfield/mantis-core-sub001/internal/model"
)

// reportDoc is the YAML shape of a report request file.
type reportDoc struct {
	Name    string        `yaml:"name"`
	From    []string      `yaml:"from"`
	UseDate []string      `yaml:"use_date"`
	Period  string        `yaml:"period"`
	Show    []showItemDoc `yaml:"show"`
	Group   []string      `yaml:"group"`
	Filters []string      `yaml:"filters"`
	Sort    []sortKeyDoc  `yaml:"sort"`
	Limit   int           `yaml:"limit"`
}

// showItemDoc is one show entry. Exactly one of Measure, Column or Expr
// must be set; Suffix is only valid with Measure, As only with Expr.
type showItemDoc struct {
	Measure string `yaml:"measure"`
	Suffix  string `yaml:"suffix"`
	Column  string `yaml:"column"`
	Expr    string `yaml:"expr"`
	As      string `yaml:"as"`
}

type sortKeyDoc struct {
	By   string `yaml:"by"`
	Desc bool   `yaml:"desc"`
}

// LoadReport reads a YAML report request file into a model.Report,
// parsing filter and expression strings.
func LoadReport(path string) (model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Report{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("reading report file: %v", err)}
	}

	var doc reportDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.Report{}, &LoadError{Code: ErrCodeReportParse, Message: fmt.Sprintf("parsing report YAML: %v", err)}
	}

	r := model.Report{
		Name:    doc.Name,
		From:    doc.From,
		UseDate: doc.UseDate,
		Group:   doc.Group,
		Limit:   doc.Limit,
	}
	if r.Name == "" {
		r.Name = path
	}

	if doc.Period != "" {
		expr, err := model.ParseExpr(doc.Period)
		if err != nil {
			return model.Report{}, &LoadError{Code: ErrCodeReportInvalid, Message: fmt.Sprintf("period: %v", err)}
		}
		r.Period = expr
	}

	for i, item := range doc.Show {
		show, err := convertShowItem(item)
		if err != nil {
			return model.Report{}, &LoadError{Code: ErrCodeReportInvalid, Message: fmt.Sprintf("show[%d]: %v", i, err)}
		}
		r.Show = append(r.Show, show)
	}

	for i, f := range doc.Filters {
		expr, err := model.ParseExpr(f)
		if err != nil {
			return model.Report{}, &LoadError{Code: ErrCodeReportInvalid, Message: fmt.Sprintf("filters[%d]: %v", i, err)}
		}
		r.Filters = append(r.Filters, expr)
	}

	for i, k := range doc.Sort {
		ref, err := model.ParseColumnRef(k.By)
		if err != nil {
			return model.Report{}, &LoadError{Code: ErrCodeReportInvalid, Message: fmt.Sprintf("sort[%d]: %v", i, err)}
		}
		r.Sort = append(r.Sort, model.SortKey{Column: ref, Descending: k.Desc})
	}

	return r, nil
}

func convertShowItem(item showItemDoc) (model.ShowItem, error) {
	set := 0
	if item.Measure != "" {
		set++
	}
	if item.Column != "" {
		set++
	}
	if item.Expr != "" {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of measure, column or expr must be set")
	}

	switch {
	case item.Measure != "":
		if item.Suffix != "" {
			return model.ShowMeasureSuffix{Measure: item.Measure, Suffix: item.Suffix}, nil
		}
		return model.ShowMeasure{Measure: item.Measure}, nil

	case item.Column != "":
		if item.Suffix != "" {
			return nil, fmt.Errorf("suffix is only valid on measures")
		}
		ref, err := model.ParseColumnRef(item.Column)
		if err != nil {
			return nil, err
		}
		return model.ShowColumn{Column: ref}, nil

	default:
		if item.As == "" {
			return nil, fmt.Errorf("expr requires an alias (as)")
		}
		expr, err := model.ParseExpr(item.Expr)
		if err != nil {
			return nil, err
		}
		return model.ShowInline{Name: item.As, Expr: expr}, nil
	}
}
