// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const (
	FieldComponent   = "component"
	FieldBlockNumber = "block"
	FieldFromBlock   = "fromBlock"
	FieldToBlock     = "toBlock"
	FieldAccounts    = "accounts"
	FieldBackend     = "backend"
	FieldDirectory   = "directory"
	FieldAddress     = "address"
	FieldDuration    = "duration"
	FieldRpcMethod   = "rpcMethod"
)

var (
	componentsFilter = make(map[string]bool)
	all              = true
	lock             = sync.RWMutex{}
)

// componentFilterWriter drops all records of a disabled component.
type componentFilterWriter struct {
	writer io.Writer
	name   string
}

func (w componentFilterWriter) Write(p []byte) (n int, err error) {
	if !isEnabled(w.name) {
		return len(p), nil
	}
	return w.writer.Write(p)
}

func isEnabled(component string) bool {
	lock.RLock()
	defer lock.RUnlock()
	if enabled, found := componentsFilter[component]; found {
		return enabled
	}
	return all
}

// ApplyComponentsFilter enables or disables logging per component. The
// filter is a colon separated list of component names, optionally prefixed
// with '-' to disable them. The name "all" addresses every component.
func ApplyComponentsFilter(filter string) {
	lock.Lock()
	defer lock.Unlock()

	for _, comp := range strings.Split(filter, ":") {
		if comp == "" {
			continue
		}

		enabled := true
		if comp[0] == '-' {
			enabled = false
			comp = comp[1:]
		}

		if comp == "all" {
			all = enabled
			for k := range componentsFilter {
				componentsFilter[k] = enabled
			}
		} else {
			componentsFilter[comp] = enabled
		}
	}
}

// ApplyComponentsFilterEnv applies the filter found in STATEDIFF_LOG_FILTER.
func ApplyComponentsFilterEnv() {
	if logFilter := os.Getenv("STATEDIFF_LOG_FILTER"); logFilter != "" {
		ApplyComponentsFilter(logFilter)
	}
}

// SetupGlobalLevel sets the minimum level of all loggers.
func SetupGlobalLevel(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

// NewLogger creates a console logger for the given component writing to
// stderr. Colors are disabled when stderr is not a terminal or NO_COLOR is set.
func NewLogger(component string) zerolog.Logger {
	noColor := os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd()))
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			FieldComponent,
			zerolog.MessageFieldName,
		},
		FieldsExclude: []string{FieldComponent},
		NoColor:       noColor,
	}
	return newLogger(component, consoleWriter)
}

// NewLoggerWithWriter creates a JSON logger for the given component.
func NewLoggerWithWriter(component string, writer io.Writer) zerolog.Logger {
	return newLogger(component, writer)
}

func newLogger(component string, writer io.Writer) zerolog.Logger {
	return zerolog.New(componentFilterWriter{writer: writer, name: component}).
		With().
		Str(FieldComponent, component).
		Timestamp().
		Logger()
}

func Nop() zerolog.Logger {
	return zerolog.Nop()
}
