package printer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/viant/floor/model/types"
)

// Name is the logic name the function is registered under
const Name = "print"

// Service prints function parameters
type Service struct {
	mux    sync.Mutex
	writer io.Writer
}

// New creates a printer writing to w, os.Stdout when nil
func New(w io.Writer) *Service {
	if w == nil {
		w = os.Stdout
	}
	return &Service{writer: w}
}

// Function prints the parameter and passes it through
func (s *Service) Function(ctx types.FunctionContext) (interface{}, error) {
	parameter := ctx.Parameter()
	s.mux.Lock()
	defer s.mux.Unlock()
	var err error
	switch actual := parameter.(type) {
	case nil:
		_, err = fmt.Fprintln(s.writer)
	case string:
		_, err = fmt.Fprintln(s.writer, actual)
	case error:
		_, err = fmt.Fprintln(s.writer, actual.Error())
	default:
		_, err = fmt.Fprintf(s.writer, "%+v\n", actual)
	}
	return parameter, err
}
