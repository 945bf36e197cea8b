/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"encarte/internal/bundle"
	"encarte/internal/config"
	"encarte/internal/crash"
	applog "encarte/internal/log"
	"encarte/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Encarte label and flyer templates")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  encarte version|-v|--version                 Show version")
	_, _ = fmt.Fprintln(w, "  encarte validate <template.json>             Check a template against the schema")
	_, _ = fmt.Fprintln(w, "  encarte export <template.json> <out.pdf> [print|screen]")
	_, _ = fmt.Fprintln(w, "                                               Export one template as PDF")
	_, _ = fmt.Fprintln(w, "  encarte batch <out.pdf> <template.json>...   Export templates as one PDF, one page each")
	_, _ = fmt.Fprintln(w, "  encarte import <template.json>               Add a template to the local library")
	_, _ = fmt.Fprintln(w, "  encarte list                                 List the local library")
	_, _ = fmt.Fprintln(w, "  encarte search <text>                        Search template text in the library")
	_, _ = fmt.Fprintln(w, "  encarte save <name> <template.json>          Write a library template to a file")
	_, _ = fmt.Fprintln(w, "  encarte edit <name> <element-id> <json>      Patch one element, e.g. '{\"fill\":\"#ff0000\"}'")
	_, _ = fmt.Fprintln(w, "  encarte undo|redo <name>                     Step a library template through its history")
	_, _ = fmt.Fprintln(w, "  encarte history <name>                       Show the stored editing history")
	_, _ = fmt.Fprintln(w, "  encarte rm <name>                            Remove a template from the library")
	_, _ = fmt.Fprintln(w, "  encarte reindex                              Check the library and rebuild its search index")
	_, _ = fmt.Fprintln(w, "  encarte pack <template.json> <bundle.zip>    Bundle a template with its local images")
	_, _ = fmt.Fprintln(w, "  encarte unpack <bundle.zip> <dir>            Install a bundle into a directory")
	_, _ = fmt.Fprintln(w, "  encarte pull <name>                          Copy a template from the backend into the library")
	_, _ = fmt.Fprintln(w, "  encarte push <name>                          Upload a library template to the backend")
	_, _ = fmt.Fprintln(w, "  encarte remote [search <text>|rm <name>]     List, search or remove templates on the backend")
}

func main() {
	defer crash.Recover(nil)
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one command and returns the process exit code.
func run(args []string, out io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error reading .env:", err)
	}
	cfg, secret, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error loading config:", err)
		cfg = config.Defaults()
	}
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("cli")
	l.Debug("start", slog.Int("args", len(args)))

	if len(args) == 0 {
		usage(out)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	need := func(n int, what string) bool {
		if len(args) < n+1 {
			_, _ = fmt.Fprintf(out, "%s requires %s\n", args[0], what)
			usage(out)
			return false
		}
		return true
	}

	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(out, "Encarte")
		_, _ = fmt.Fprintln(out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(out)
		return 0
	}

	a, err := newApp(cfg, secret, out)
	if err != nil {
		l.Error("setup failed", slog.Any("err", err))
		_, _ = fmt.Fprintln(out, "Error:", err)
		return 1
	}

	var cmdErr error
	switch args[0] {
	case "validate":
		if !need(1, "<template.json>") {
			return 2
		}
		for _, f := range args[1:] {
			if err := a.validate(f); err != nil {
				_, _ = fmt.Fprintf(out, "%s: %v\n", f, err)
				cmdErr = err
			}
		}
	case "export":
		if !need(2, "<template.json> and <out.pdf>") {
			return 2
		}
		preset := cfg.Export.Preset
		if len(args) > 3 {
			preset = args[3]
		}
		cmdErr = a.exportOne(ctx, args[1], args[2], preset)
	case "batch":
		if !need(2, "<out.pdf> and at least one template") {
			return 2
		}
		cmdErr = a.batch(ctx, args[1], cfg.Export.Preset, args[2:])
	case "import":
		if !need(1, "<template.json>") {
			return 2
		}
		for _, f := range args[1:] {
			if cmdErr = a.importTemplate(ctx, f); cmdErr != nil {
				break
			}
		}
	case "list":
		cmdErr = a.list(ctx)
	case "search":
		if !need(1, "<text>") {
			return 2
		}
		cmdErr = a.search(ctx, args[1])
	case "save":
		if !need(2, "<name> and <template.json>") {
			return 2
		}
		cmdErr = a.saveAs(ctx, args[1], args[2])
	case "edit":
		if !need(3, "<name>, <element-id> and a JSON patch") {
			return 2
		}
		cmdErr = a.edit(ctx, args[1], args[2], args[3])
	case "undo", "redo":
		if !need(1, "<name>") {
			return 2
		}
		cmdErr = a.step(ctx, args[1], args[0] == "undo")
	case "history":
		if !need(1, "<name>") {
			return 2
		}
		cmdErr = a.history(ctx, args[1])
	case "rm":
		if !need(1, "<name>") {
			return 2
		}
		cmdErr = a.remove(ctx, args[1])
	case "reindex":
		cmdErr = a.reindex(ctx)
	case "pack":
		if !need(2, "<template.json> and <bundle.zip>") {
			return 2
		}
		var n int
		if n, cmdErr = bundle.Export(args[1], args[2]); cmdErr == nil {
			_, _ = fmt.Fprintf(out, "Bundled %s with %d assets\n", args[2], n)
		}
	case "unpack":
		if !need(2, "<bundle.zip> and <dir>") {
			return 2
		}
		var tpl string
		if tpl, cmdErr = bundle.Install(args[1], args[2]); cmdErr == nil {
			_, _ = fmt.Fprintf(out, "Installed %s\n", tpl)
		}
	case "pull":
		if !need(1, "<name>") {
			return 2
		}
		cmdErr = a.pull(ctx, args[1])
	case "push":
		if !need(1, "<name>") {
			return 2
		}
		cmdErr = a.push(ctx, args[1])
	case "remote":
		switch {
		case len(args) == 1:
			cmdErr = a.remote(ctx)
		case args[1] == "search" && len(args) > 2:
			cmdErr = a.remoteSearch(ctx, args[2])
		case args[1] == "rm" && len(args) > 2:
			cmdErr = a.remoteRemove(ctx, args[2])
		default:
			_, _ = fmt.Fprintf(out, "unknown remote command %q\n", args[1])
			usage(out)
			return 2
		}
	default:
		_, _ = fmt.Fprintf(out, "unknown command %q\n", args[0])
		usage(out)
		return 2
	}
	if cmdErr != nil {
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", cmdErr))
		_, _ = fmt.Fprintln(out, "Error:", cmdErr)
		return 1
	}
	return 0
}
