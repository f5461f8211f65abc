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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"blockcanvas/internal/backend"
	"blockcanvas/internal/config"
	"blockcanvas/internal/crash"
	"blockcanvas/internal/domain"
	"blockcanvas/internal/engine"
	"blockcanvas/internal/export"
	"blockcanvas/internal/formsvc"
	"blockcanvas/internal/hub"
	applog "blockcanvas/internal/log"
	"blockcanvas/internal/store"
	"blockcanvas/internal/ui"
	"blockcanvas/internal/version"
	"blockcanvas/internal/viewport"
)

func usage() {
	fmt.Println("Block Canvas — guided-conversation canvas")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  blockcanvas version|-v|--version             Show version")
	fmt.Println("  blockcanvas projects                          List projects in the workspace")
	fmt.Println("  blockcanvas create <name>                     Create a project and switch to it")
	fmt.Println("  blockcanvas switch <project-id>               Switch the current project")
	fmt.Println("  blockcanvas delete <project-id>               Delete a project (default project is kept)")
	fmt.Println("  blockcanvas blocks                            List block templates of the current project")
	fmt.Println("  blockcanvas place <block-id> [<x> <y>]        Place a node (position snaps to the grid)")
	fmt.Println("  blockcanvas step <node-id> [key=value ...]    Submit answers for a node's current form")
	fmt.Println("  blockcanvas export-pdf <node-id> <out.pdf>    Export a node transcript as PDF")
	fmt.Println("  blockcanvas export-png <out.png>              Export the current canvas as PNG")
	fmt.Println("  blockcanvas sync push|pull <out.json>|token <t>  Push or pull workspace snapshots")
	fmt.Println("  blockcanvas share <owner>/<repo>|token <t>    Open a pull request with the current project")
	fmt.Println("  blockcanvas ui [<dir>]                        Launch desktop UI (build with -tags fyne for full UI)")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var st *store.Store
	defer func() { crash.Recover(st) }()

	cfg, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}

	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Block Canvas — guided-conversation canvas")
		fmt.Println(version.String())
		return
	case "ui":
		var dir string
		if len(args) >= 3 {
			dir = args[2]
		}
		if err := ui.Run(dir); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		return
	}

	st, err = store.Open(config.DefaultWorkspace(cfg))
	if err != nil {
		l.Error("open workspace failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	switch args[1] {
	case "projects":
		cur := st.Current()
		for _, p := range st.ListProjects() {
			marker := " "
			if p.ID == cur.ID {
				marker = "*"
			}
			suffix := ""
			if p.IsDefault {
				suffix = " (default)"
			}
			fmt.Printf("%s %s  %s%s  nodes=%d\n", marker, p.ID, p.Name, suffix, len(p.Nodes))
		}
	case "create":
		if len(args) < 3 {
			fmt.Println("create requires <name>")
			os.Exit(2)
		}
		id, err := st.CreateProject(strings.Join(args[2:], " "))
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println("Created and switched to project", id)
	case "switch":
		if len(args) < 3 {
			fmt.Println("switch requires <project-id>")
			os.Exit(2)
		}
		st.SwitchProject(args[2])
		fmt.Println("Current project:", st.Current().Name)
	case "delete":
		if len(args) < 3 {
			fmt.Println("delete requires <project-id>")
			os.Exit(2)
		}
		st.DeleteProject(args[2])
		fmt.Println("Current project:", st.Current().Name)
	case "blocks":
		p := st.Current()
		for _, b := range p.Blocks {
			kind := "custom"
			if b.IsBuiltIn {
				kind = "built-in"
			}
			fmt.Printf("%s  %s  [%s]\n", b.ID, b.Name, kind)
		}
	case "place":
		if len(args) < 3 {
			fmt.Println("place requires <block-id>")
			os.Exit(2)
		}
		runPlace(st, args[2], args[3:])
	case "step":
		if len(args) < 3 {
			fmt.Println("step requires <node-id>")
			os.Exit(2)
		}
		runStep(st, cfg, args[2], args[3:])
	case "export-pdf":
		if len(args) < 4 {
			fmt.Println("export-pdf requires <node-id> and <out.pdf>")
			os.Exit(2)
		}
		runExportPDF(st, args[2], args[3])
	case "export-png":
		if len(args) < 3 {
			fmt.Println("export-png requires <out.png>")
			os.Exit(2)
		}
		p := st.Current()
		if err := export.WriteCanvasPNG(&p, args[2]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", args[2])
	case "sync":
		if len(args) < 3 {
			fmt.Println("sync requires push, pull <out.json>, or token <token>")
			os.Exit(2)
		}
		runSync(st, cfg, args[2], args[3:])
	case "share":
		if len(args) < 3 {
			fmt.Println("share requires <owner>/<repo> or token <token>")
			os.Exit(2)
		}
		runShare(st, cfg, args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func runPlace(st *store.Store, blockID string, rest []string) {
	p := st.Current()
	tmpl, ok := st.GetBlock(p.ID, blockID)
	if !ok {
		fmt.Println("Error: unknown block template", blockID)
		os.Exit(1)
	}
	at := viewport.Pt{}
	if len(rest) >= 2 {
		x, errX := strconv.ParseFloat(rest[0], 64)
		y, errY := strconv.ParseFloat(rest[1], 64)
		if errX != nil || errY != nil {
			fmt.Println("place position must be two numbers")
			os.Exit(2)
		}
		at = viewport.Pt{X: x, Y: y}
	}
	at = viewport.Snap(at)
	id, err := st.AddNode(p.ID, domain.Node{
		BlockID: blockID,
		X:       at.X,
		Y:       at.Y,
		Config:  tmpl.Snapshot(),
	})
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Placed %s at (%.0f, %.0f): node %s\n", tmpl.Name, at.X, at.Y, id)
}

func runStep(st *store.Store, cfg config.AppConfig, nodeID string, pairs []string) {
	l := applog.WithComponent("cli")
	svc, err := formsvc.NewClient(cfg.FormService.BaseURL)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	transcript, err := store.OpenTranscript(st.Root())
	if err != nil {
		l.Warn("transcript unavailable", slog.Any("err", err))
		transcript = nil
	} else {
		defer func() { _ = transcript.Close() }()
	}
	eng := engine.New(st, svc, transcript)

	answers := map[string]any{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			fmt.Println("answers must be key=value pairs, got:", pair)
			os.Exit(2)
		}
		// a comma-separated value submits as a list
		if strings.Contains(v, ",") {
			parts := strings.Split(v, ",")
			list := make([]string, 0, len(parts))
			for _, s := range parts {
				if s = strings.TrimSpace(s); s != "" {
					list = append(list, s)
				}
			}
			answers[k] = list
			continue
		}
		answers[k] = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.FormService.TimeoutMs)*time.Millisecond)
	defer cancel()
	res, err := eng.Submit(ctx, st.Current().ID, nodeID, answers)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Step %d accepted, node is now %s\n", res.Step, res.Phase)
}

func runExportPDF(st *store.Store, nodeID, outPath string) {
	p := st.Current()
	n, ok := st.GetNode(p.ID, nodeID)
	if !ok {
		fmt.Println("Error: unknown node", nodeID)
		os.Exit(1)
	}
	if err := export.WriteTranscriptPDF(&p, &n, outPath, export.PDFOptions{Title: n.Config.Name}); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Println("Wrote", outPath)
}

func runSync(st *store.Store, cfg config.AppConfig, verb string, rest []string) {
	if verb == "token" {
		if len(rest) < 1 {
			fmt.Println("sync token requires <token>")
			os.Exit(2)
		}
		if err := config.SetSyncToken(rest[0]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println("Sync token stored in the system keyring.")
		return
	}
	tok, err := config.SyncToken()
	if err != nil {
		fmt.Println("Error: no sync token stored; run: blockcanvas sync token <token>")
		os.Exit(1)
	}
	client := backend.NewClient(cfg.Sync.BaseURL, tok)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Sync.TimeoutMs)*time.Millisecond)
	defer cancel()

	p := st.Current()
	switch verb {
	case "push":
		snapshot, err := json.Marshal(p)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		ver, err := client.PushSnapshot(ctx, p.ID, p.Name, snapshot)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Printf("Pushed %q as version %d\n", p.Name, ver)
	case "pull":
		if len(rest) < 1 {
			fmt.Println("sync pull requires <out.json>")
			os.Exit(2)
		}
		env, err := client.GetSnapshot(ctx, p.ID)
		if err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(rest[0], env.Snapshot, 0o644); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote version %d of %q to %s\n", env.Version, p.Name, rest[0])
	default:
		fmt.Println("sync requires push, pull <out.json>, or token <token>")
		os.Exit(2)
	}
}

func runShare(st *store.Store, cfg config.AppConfig, args []string) {
	if args[0] == "token" {
		if len(args) < 2 {
			fmt.Println("share token requires <token>")
			os.Exit(2)
		}
		if err := config.SetHubToken(args[1]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println("Hub token stored in the system keyring.")
		return
	}
	owner, repo := cfg.Hub.Owner, cfg.Hub.Repo
	if o, r, ok := strings.Cut(args[0], "/"); ok {
		owner, repo = o, r
	}
	if owner == "" || repo == "" {
		fmt.Println("share requires <owner>/<repo> (or hub.owner and hub.repo in the config)")
		os.Exit(2)
	}
	tok, err := config.HubToken()
	if err != nil {
		fmt.Println("Error: no hub token stored; run: blockcanvas share token <token>")
		os.Exit(1)
	}

	p := st.Current()
	snapshot, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	client := hub.NewClient(cfg.Hub.APIBase, "https://github.com", cfg.Hub.ClientID, tok)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	branch := "canvas/" + p.ID
	path := "canvases/" + p.ID + ".json"
	if err := client.EnsureBranch(ctx, owner, repo, branch, "main"); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	msg := fmt.Sprintf("Update canvas %q", p.Name)
	if err := client.UpsertFile(ctx, owner, repo, branch, path, msg, snapshot); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	pr, err := client.OpenPullRequest(ctx, owner, repo, msg, branch, "main",
		fmt.Sprintf("Canvas snapshot with %d node(s).", len(p.Nodes)))
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Opened pull request #%d: %s\n", pr.Number, pr.HTMLURL)
}
