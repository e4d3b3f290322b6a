package InputParameters

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/go-homedir"
	"github.com/notargets/gopencils/permutation"
	"github.com/notargets/gopencils/transport"
	"github.com/notargets/gopencils/types"
	"github.com/notargets/gopencils/utils"
	"github.com/pkg/errors"
)

// PencilParameters describes one stage of a transpose chain
type PencilParameters struct {
	Decomposition []int `json:"Decomposition"` // Array axis split along each topology axis
	Permutation   []int `json:"Permutation"`   // Memory order, empty for identity
}

// Parameters obtained from the YAML run file
type InputParameters struct {
	Title       string             `json:"Title"`
	GlobalSize  []int              `json:"GlobalSize"`
	ProcessGrid []int              `json:"ProcessGrid"`
	Method      string             `json:"Method"` // pairwise or collective
	ExtraDims   []int              `json:"ExtraDims"`
	Iterations  int                `json:"Iterations"`
	Pencils     []PencilParameters `json:"Pencils"`
}

// NewDefault is the 16 x 21 x 41 case on a 2 x 2 grid.
func NewDefault() *InputParameters {
	return &InputParameters{
		Title:       "Pencil transpose",
		GlobalSize:  []int{16, 21, 41},
		ProcessGrid: []int{2, 2},
		Method:      "pairwise",
		Iterations:  1,
		Pencils: []PencilParameters{
			{Decomposition: []int{1, 2}},
			{Decomposition: []int{0, 2}, Permutation: []int{1, 2, 0}},
			{Decomposition: []int{0, 1}, Permutation: []int{2, 0, 1}},
		},
	}
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// ReadFile parses a run file, expanding a leading ~ in the path.
func (ip *InputParameters) ReadFile(path string) (err error) {
	var data []byte
	if path, err = homedir.Expand(path); err != nil {
		return
	}
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	return ip.Parse(data)
}

// Validate checks the run description without building anything.
func (ip *InputParameters) Validate() (err error) {
	N := len(ip.GlobalSize)
	switch {
	case N == 0 || N > permutation.MaxDims:
		return errors.Wrapf(types.ErrArgument, "global size %v: need 1..%d axes", ip.GlobalSize, permutation.MaxDims)
	case len(ip.ProcessGrid) == 0:
		return errors.Wrap(types.ErrArgument, "empty process grid")
	case len(ip.Pencils) < 2:
		return errors.Wrapf(types.ErrArgument, "%d pencils, a transpose chain needs at least 2", len(ip.Pencils))
	case ip.Iterations < 0:
		return errors.Wrapf(types.ErrArgument, "negative iteration count %d", ip.Iterations)
	case len(ip.GlobalSize)+len(ip.ExtraDims) > utils.MaxRank:
		return errors.Wrapf(types.ErrArgument, "%d axes plus %d extra dimensions exceed %d",
			N, len(ip.ExtraDims), utils.MaxRank)
	}
	for _, n := range append(utils.Index(ip.GlobalSize).Copy(), ip.ProcessGrid...) {
		if n < 1 {
			return errors.Wrapf(types.ErrArgument, "size %v on grid %v: extents must be positive",
				ip.GlobalSize, ip.ProcessGrid)
		}
	}
	for _, n := range ip.ExtraDims {
		if n < 0 {
			return errors.Wrapf(types.ErrArgument, "negative extra dimension in %v", ip.ExtraDims)
		}
	}
	for i, pp := range ip.Pencils {
		if len(pp.Decomposition) != len(ip.ProcessGrid) {
			return errors.Wrapf(types.ErrArgument, "pencil %d: decomposition %v on a %d dimensional grid",
				i, pp.Decomposition, len(ip.ProcessGrid))
		}
		if len(pp.Permutation) != 0 {
			var P permutation.Permutation
			if P, err = permutation.New(pp.Permutation...); err != nil {
				return errors.Wrapf(err, "pencil %d", i)
			}
			if err = P.CheckLen(N); err != nil {
				return errors.Wrapf(err, "pencil %d", i)
			}
		}
	}
	return
}

// Print logs the parameters on the root rank of c.
func (ip *InputParameters) Print(c transport.Comm) {
	transport.Printf(c, "\"%s\"\t\t= Title\n", ip.Title)
	transport.Printf(c, "%v\t\t= Global Size\n", ip.GlobalSize)
	transport.Printf(c, "%v\t\t\t= Process Grid\n", ip.ProcessGrid)
	transport.Printf(c, "[%s]\t\t= Method\n", ip.Method)
	transport.Printf(c, "%v\t\t\t= Extra Dimensions\n", ip.ExtraDims)
	transport.Printf(c, "[%d]\t\t\t= Iterations\n", ip.Iterations)
	for i, pp := range ip.Pencils {
		transport.Printf(c, "Pencils[%d] = %s\n", i, pp)
	}
}

func (pp PencilParameters) String() string {
	perm := "Identity"
	if len(pp.Permutation) != 0 {
		perm = fmt.Sprint(pp.Permutation)
	}
	return fmt.Sprintf("decomposition %v, permutation %s", pp.Decomposition, perm)
}
