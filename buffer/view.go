package buffer

import (
	"fmt"

	"github.com/wippyai/ffi-bridge/abi"
	"github.com/wippyai/ffi-bridge/errors"
	"github.com/wippyai/ffi-bridge/handle"
)

// Source is an object that lends out its code units.
type Source interface {
	// Epoch returns the modification counter and whether the source is
	// still live. Any mutation must change the epoch.
	Epoch() (uint64, bool)
	// Units returns the current contents.
	Units() []uint16
}

// Locator is implemented by sources whose units live in linear memory.
type Locator interface {
	Slice() abi.Slice
}

// View is a borrowed, read-only window onto a Source. It is valid while the
// source is live and unmodified since Borrow.
type View struct {
	src    Source
	epoch  uint64
	policy handle.Policy
}

// Borrow creates a view of src's current contents. The policy given with
// WithPolicy applies to Borrow itself and to every later use of the view.
func Borrow(src Source, opts ...Option) (*View, error) {
	o := applyOptions(opts)
	epoch, live := src.Epoch()
	if !live {
		return nil, o.policy.Enforce(errors.Violation(errors.PhaseBuffer, errors.KindUseAfterDestroy,
			"borrow from destroyed source", nil))
	}
	return &View{src: src, epoch: epoch, policy: o.policy}, nil
}

func (v *View) check() error {
	epoch, live := v.src.Epoch()
	if !live {
		return errors.Violation(errors.PhaseBuffer, errors.KindUseAfterDestroy,
			"view outlived its source", nil)
	}
	if epoch != v.epoch {
		return errors.Violation(errors.PhaseBuffer, errors.KindBorrowInvalidated,
			fmt.Sprintf("source modified (epoch %d, view taken at %d)", epoch, v.epoch), epoch)
	}
	return nil
}

// Valid reports whether the view may still be read.
func (v *View) Valid() bool {
	return v.check() == nil
}

// Units returns the borrowed code units. The caller must not modify them.
func (v *View) Units() ([]uint16, error) {
	if err := v.check(); err != nil {
		return nil, v.policy.Enforce(err)
	}
	return v.src.Units(), nil
}

// Len returns the number of code units.
func (v *View) Len() (int, error) {
	if err := v.check(); err != nil {
		return 0, v.policy.Enforce(err)
	}
	return len(v.src.Units()), nil
}

// At returns the code unit at index i.
func (v *View) At(i int) (uint16, error) {
	units, err := v.Units()
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(units) {
		return 0, errors.OutOfBounds(errors.PhaseBuffer, []string{"view"}, i, len(units))
	}
	return units[i], nil
}

// String decodes the view, replacing unpaired surrogates.
func (v *View) String() string {
	if v.check() != nil {
		return "<invalid view>"
	}
	return DecodeString(v.src.Units())
}

// Slice returns where the units live in linear memory. The source must
// implement Locator.
func (v *View) Slice() (abi.Slice, error) {
	if err := v.check(); err != nil {
		return abi.Slice{}, v.policy.Enforce(err)
	}
	loc, ok := v.src.(Locator)
	if !ok {
		return abi.Slice{}, errors.Unsupported(errors.PhaseBuffer, "source has no linear memory location")
	}
	return loc.Slice(), nil
}

// Release always fails: borrowed views are never released by the borrower.
func (v *View) Release() error {
	return v.policy.Enforce(errors.Violation(errors.PhaseBuffer, errors.KindReleaseBorrowed,
		"borrowed view cannot be released", nil))
}
