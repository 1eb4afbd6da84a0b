package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type levelStyle struct {
	color  string
	marker string
}

var levelStyles = map[string]levelStyle{
	"trace": {"[dark_gray]", "  .."},
	"debug": {"[blue]", "  .."},
	"info":  {"[green]", "==>"},
	"warn":  {"[yellow]", " !>"},
	"error": {"[red]", "!!>"},
	"fatal": {"[red]", "!!>"},
}

// fields that are part of the line layout and never printed as details
var layoutFields = map[string]bool{
	"level":   true,
	"message": true,
	"task":    true,
	"command": true,
	"error":   true,
	"time":    true,
}

// ConsoleWriter renders zerolog events as one coloured line per event:
// "<marker> <task>: <message>". Commands are prefixed with "$" instead.
type ConsoleWriter struct {
	lock  sync.Mutex
	out   io.Writer
	root  string
	debug bool
}

// NewConsoleWriter returns a writer that prints to out and shortens paths relative to root
func NewConsoleWriter(out io.Writer, root string) *ConsoleWriter {
	return &ConsoleWriter{
		out:   out,
		root:  root,
		debug: os.Getenv("PYTASK_DEBUG") != "",
	}
}

func (w *ConsoleWriter) shorten(msg string) string {
	if w.root == "" {
		return msg
	}
	return strings.ReplaceAll(msg, w.root+string(filepath.Separator), "")
}

func (w *ConsoleWriter) Write(p []byte) (int, error) {
	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return 0, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	level, _ := evt["level"].(string)
	style, ok := levelStyles[level]
	if !ok {
		style = levelStyles["info"]
	}

	line := strings.Builder{}
	line.WriteString(style.color)
	if command, _ := evt["command"].(bool); command {
		line.WriteString("  $")
	} else {
		line.WriteString(style.marker)
	}
	line.WriteString("[reset] ")

	if task, ok := evt["task"].(string); ok {
		line.WriteString("[bold]" + task + ":[reset] ")
	}

	msg, _ := evt["message"].(string)
	line.WriteString(w.shorten(msg))

	if details, ok := evt["error"].(string); ok {
		line.WriteString("\n" + style.color + w.shorten(details) + "[reset]")
	}

	if w.debug {
		names := make([]string, 0, len(evt))
		for name := range evt {
			if !layoutFields[name] {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, name := range names {
			line.WriteString(fmt.Sprintf("\n      %s=%v", name, evt[name]))
		}
	}
	line.WriteString("\n")

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, err := colorstring.Fprint(w.out, line.String()); err != nil {
		return 0, err
	}
	return len(p), nil
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("PYTASK_DEBUG") != "")
	}
}
