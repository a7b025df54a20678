package rsync

import (
	"github.com/hhzhhzhhz/mirror-master/entity"
)

const deleteFlag = "--delete"

// Defaults process wide fallbacks for absent option fields.
type Defaults struct {
	Options []string
	Delete  bool
}

// Resolve builds a complete OptionSet for a new job.
func Resolve(p *entity.OptionsPatch, d Defaults) entity.OptionSet {
	return Merge(entity.OptionSet{
		Basic:    []string{},
		Defaults: clone(d.Options),
		Delete:   d.Delete,
	}, p, d)
}

// Merge applies each present field of p over cur, independently.
// An empty defaults list falls back to the configured defaults.
func Merge(cur entity.OptionSet, p *entity.OptionsPatch, d Defaults) entity.OptionSet {
	out := entity.OptionSet{
		Basic:    clone(cur.Basic),
		Defaults: clone(cur.Defaults),
		Delete:   cur.Delete,
	}
	if p != nil {
		if p.Basic != nil {
			out.Basic = clone(*p.Basic)
		}
		if p.Defaults != nil {
			out.Defaults = clone(*p.Defaults)
		}
		if p.Delete != nil {
			out.Delete = *p.Delete
		}
	}
	if len(out.Defaults) == 0 {
		out.Defaults = clone(d.Options)
	}
	return out
}

// Args command line flags in invocation order: defaults, basic, delete.
func Args(o entity.OptionSet) []string {
	args := make([]string, 0, len(o.Defaults)+len(o.Basic)+1)
	args = append(args, o.Defaults...)
	args = append(args, o.Basic...)
	if o.Delete {
		args = append(args, deleteFlag)
	}
	return args
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
