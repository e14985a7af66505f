package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

const (
	PictoFinish      = "🏁"
	PictoCalendar    = "📅"
	PictoPin         = "📌"
	PictoStop        = "🚫"
	PictoGhost       = "👻"
	PictoNotebook    = "📒"
	PictoThermometer = "🌡"
	PictoHumidity    = "💧"
)

// color.NoColor is honoured at print time, so tests can turn colors off
// after these are built.
var (
	Red    = color.New(color.FgRed).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
)

var (
	writer    io.Writer = os.Stdout
	errWriter io.Writer = os.Stderr
)

// SetOutput redirects everything the commands print.
func SetOutput(w, errw io.Writer) {
	writer = w
	errWriter = errw
}

func Writer() io.Writer {
	return writer
}

// line writes one message prefixed with prefix and sep. The message is only
// formatted when there are arguments, so a bare error text may contain %.
func line(w io.Writer, prefix, sep, msg string, args []interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	_, _ = fmt.Fprintf(w, "%s%s%s\n", prefix, sep, msg)
}

func Error(msg string) {
	line(errWriter, Red("ERROR"), ": ", msg, nil)
}

func Errorf(msg string, args ...interface{}) {
	line(errWriter, Red("ERROR"), ": ", msg, args)
}

func Warnf(msg string, args ...interface{}) {
	line(errWriter, Yellow("WARN"), ": ", msg, args)
}

func Infof(msg string, args ...interface{}) {
	line(writer, White("..."), " ", msg, args)
}

// PInfof prints an informational line led by a pictogram.
func PInfof(picto, msg string, args ...interface{}) {
	line(writer, picto, " ", msg, args)
}

func Print(msg string) {
	_, _ = fmt.Fprintln(writer, msg)
}

func Printf(msg string, args ...interface{}) {
	_, _ = fmt.Fprintf(writer, msg, args...)
}
