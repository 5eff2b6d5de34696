package log

import (
	"io"
	"log"
	"os"
)

var (
	Info = &Logger{log.New(os.Stdout, "INFO ", log.LstdFlags|log.Lshortfile), os.Stdout}
	Warn = &Logger{log.New(os.Stdout, "WARN ", log.LstdFlags|log.Lshortfile), os.Stdout}
	Erro = &Logger{log.New(os.Stderr, "ERRO ", log.LstdFlags|log.Lshortfile), os.Stderr}
	Debg = &Logger{log.New(os.Stdout, "DEBG ", log.LstdFlags|log.Lshortfile), os.Stdout}
)

type Logger struct {
	*log.Logger
	out io.Writer
}

func (l *Logger) On() {
	l.SetOutput(l.out)
}

func (l *Logger) Off() {
	l.SetOutput(io.Discard)
}
