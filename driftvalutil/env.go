/*
Copyright © 2024 the DriftVal authors.
This file is part of DriftVal.

DriftVal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

DriftVal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with DriftVal.  If not, see <http://www.gnu.org/licenses/>.
*/

package driftvalutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/driftval/cloud"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// env holds the context, logger and file transfers of a running command.
type env struct {
	ctx context.Context
	log logrus.FieldLogger
	dl  *cloud.Downloader
	up  cloud.Uploader
}

// fetch expands environment variables in path and makes the file
// available locally.
func (e *env) fetch(path string) (string, error) {
	path = os.ExpandEnv(path)
	if path == "" {
		return "", fmt.Errorf("driftval: an input file is not specified")
	}
	return e.dl.Fetch(e.ctx, path)
}

func (e *env) fetchAll(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("driftval: no input files are specified")
	}
	o := make([]string, len(paths))
	for i, p := range expandStringSlice(paths) {
		f, err := e.fetch(p)
		if err != nil {
			return nil, err
		}
		o[i] = f
	}
	return o, nil
}

// output checks the output file path and returns the local path to
// write to. Blob outputs are uploaded after the command finishes.
func (e *env) output(path string) (string, error) {
	f, err := checkOutputFile(e.ctx, path)
	if err != nil {
		return "", err
	}
	return e.up.Stage(f)
}

// run sets up logging and file transfers for cmd and then calls f.
func run(cmd *cobra.Command, f func(e *env) error) error {
	start := time.Now()
	log, closer, err := newLogger(cmd.OutOrStdout(), Cfg.GetString("LogFile"), Cfg.GetString("LogLevel"))
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := &env{ctx: ctx, log: log, dl: &cloud.Downloader{Log: log}}
	defer e.dl.Close()
	if err := f(e); err != nil {
		return err
	}
	if err := e.up.Upload(ctx); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"command": cmd.Name(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("finished")
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger returns a logger that writes to w and, if logFile is not
// blank, to a rotated log file.
func newLogger(w io.Writer, logFile, level string) (*logrus.Logger, io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("driftval: invalid LogLevel: %v", err)
	}
	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	var c io.Closer = nopCloser{}
	if logFile = os.ExpandEnv(logFile); logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    64, // MB
			MaxBackups: 3,
		}
		w = io.MultiWriter(w, lj)
		c = lj
	}
	log.SetOutput(w)
	return log, c, nil
}
