//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	bcanvas "blockcanvas/internal/canvas"
	"blockcanvas/internal/config"
	"blockcanvas/internal/crash"
	"blockcanvas/internal/domain"
	"blockcanvas/internal/engine"
	"blockcanvas/internal/formsvc"
	applog "blockcanvas/internal/log"
	"blockcanvas/internal/schemaform"
	"blockcanvas/internal/store"
	"blockcanvas/internal/telemetry"
	"blockcanvas/internal/viewport"
)

// Run starts the Fyne-based desktop shell: project sidebar, template
// palette, the canvas surface, and the per-node form overlay.
func Run(workspaceDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	cfg, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	if workspaceDir == "" {
		workspaceDir = config.DefaultWorkspace(cfg)
	}

	st, err := store.Open(workspaceDir)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	defer func() { crash.Recover(st) }()

	transcript, err := store.OpenTranscript(workspaceDir)
	if err != nil {
		l.Warn("transcript unavailable", slog.Any("err", err))
		transcript = nil
	}
	defer func() { _ = transcript.Close() }()

	svc, err := formsvc.NewClient(cfg.FormService.BaseURL)
	if err != nil {
		return fmt.Errorf("form service client: %w", err)
	}
	eng := engine.New(st, svc, transcript)
	surface := bcanvas.NewSurface(st, eng, viewport.Size{W: 1200, H: 800})

	fyneApp := app.NewWithID("blockcanvas")
	w := fyneApp.NewWindow("Block Canvas")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 840)
	if winW < 900 {
		winW = 900
	}
	if winH < 640 {
		winH = 640
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")

	// project selector
	projectSelect := widget.NewSelect(nil, nil)
	refreshProjects := func() {
		var names []string
		byName := map[string]string{}
		for _, p := range st.ListProjects() {
			names = append(names, p.Name)
			byName[p.Name] = p.ID
		}
		projectSelect.Options = names
		projectSelect.SetSelected(st.Current().Name)
		projectSelect.OnChanged = func(name string) {
			if id, ok := byName[name]; ok {
				st.SwitchProject(id)
				surface.ShowProject(id)
				status.SetText("Switched to " + name)
			}
		}
		projectSelect.Refresh()
	}
	refreshProjects()

	// template palette
	current := st.Current()
	palette := widget.NewList(
		func() int { return len(st.Current().Blocks) },
		func() fyne.CanvasObject { return widget.NewLabel("template") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			blocks := st.Current().Blocks
			if i < len(blocks) {
				o.(*widget.Label).SetText(blocks[i].Name)
			}
		},
	)
	palette.OnSelected = func(i widget.ListItemID) {
		blocks := st.Current().Blocks
		if i >= len(blocks) {
			return
		}
		center := viewport.Pt{X: 600, Y: 400}
		id, err := surface.DropTemplate(blocks[i].ID, center)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		telemetry.Event("node_placed", map[string]any{"template": blocks[i].ID})
		status.SetText("Placed " + blocks[i].Name + " (" + id + ")")
		palette.UnselectAll()
	}

	// node list doubles as the canvas inspector in this shell
	nodeList := widget.NewList(
		func() int { return len(st.Current().Nodes) },
		func() fyne.CanvasObject { return widget.NewLabel("node") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			nodes := st.Current().Nodes
			if i < len(nodes) {
				n := nodes[i]
				o.(*widget.Label).SetText(fmt.Sprintf("%s [%s] %d step(s)", n.Config.Name, n.Phase(), len(n.History)))
			}
		},
	)
	nodeList.OnSelected = func(i widget.ListItemID) {
		nodes := st.Current().Nodes
		if i < len(nodes) {
			showNodeForm(w, st, eng, surface, nodes[i].ID, status, nodeList)
		}
		nodeList.UnselectAll()
	}

	newProjectBtn := widget.NewButton("New Project", func() {
		entry := widget.NewEntry()
		dialog.ShowForm("New Project", "Create", "Cancel",
			[]*widget.FormItem{widget.NewFormItem("Name", entry)},
			func(ok bool) {
				if !ok {
					return
				}
				if _, err := st.CreateProject(entry.Text); err != nil {
					dialog.ShowError(err, w)
					return
				}
				telemetry.Event("project_created", nil)
				surface.ShowProject(st.Current().ID)
				refreshProjects()
				nodeList.Refresh()
			}, w)
	})

	left := container.NewBorder(
		container.NewVBox(projectSelect, newProjectBtn, widget.NewSeparator(), widget.NewLabel("Templates")),
		nil, nil, nil, palette)
	centerPanel := container.NewBorder(widget.NewLabel("Canvas — "+current.Name), status, nil, nil, nodeList)
	w.SetContent(container.NewHSplit(left, centerPanel))

	w.SetOnClosed(func() {
		prefs.SetInt("window.width", int(w.Canvas().Size().Width))
		prefs.SetInt("window.height", int(w.Canvas().Size().Height))
	})

	w.ShowAndRun()
	return nil
}

// showNodeForm renders the node's current step as a modal form: the built-in
// first-step composite before any history, the schema-driven controls after.
func showNodeForm(w fyne.Window, st *store.Store, eng *engine.Engine, surface *bcanvas.Surface, nodeID string, status *widget.Label, nodeList *widget.List) {
	pid := surface.ProjectID()
	n, ok := st.GetNode(pid, nodeID)
	if !ok {
		return
	}

	submit := func(answers map[string]any) {
		status.SetText("Submitting...")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
			defer cancel()
			res, err := eng.Submit(ctx, pid, nodeID, answers)
			fyne.Do(func() {
				if err != nil {
					status.SetText("Submit failed")
					dialog.ShowError(err, w)
					return
				}
				status.SetText(fmt.Sprintf("Step %d applied (%s)", res.Step, res.Phase))
				telemetry.Event("step_completed", map[string]any{"step": res.Step})
				nodeList.Refresh()
			})
		}()
	}

	if len(n.History) == 0 {
		showFirstStepForm(w, n.Config.FirstQuestion, n.Config.Suggestions, submit)
		return
	}
	if n.Phase() != domain.PhaseStepped {
		dialog.ShowInformation("Completed", "This conversation has ended.", w)
		return
	}
	showSchemaForm(w, n, submit)
}

func showFirstStepForm(w fyne.Window, question string, suggestions []string, submit func(map[string]any)) {
	checks := make([]*widget.Check, len(suggestions))
	var items []*widget.FormItem
	for i, s := range suggestions {
		checks[i] = widget.NewCheck(s, nil)
		items = append(items, widget.NewFormItem(strconv.Itoa(i+1), checks[i]))
	}
	custom := widget.NewMultiLineEntry()
	quick := widget.NewEntry()
	quick.SetPlaceHolder("e.g. 1,3")
	items = append(items,
		widget.NewFormItem("Your own words", custom),
		widget.NewFormItem("Quick select", quick),
	)

	dialog.ShowForm(question, "Submit", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		var selected []string
		for i, c := range checks {
			if c.Checked {
				selected = append(selected, suggestions[i])
			}
		}
		submit(schemaform.ComposeFirstStepAnswers(schemaform.FirstStepInput{
			Selected:       selected,
			CustomInput:    custom.Text,
			QuickSelection: quick.Text,
		}))
	}, w)
}

func showSchemaForm(w fyne.Window, n domain.Node, submit func(map[string]any)) {
	controls := schemaform.Controls(n.LastSchema)
	entries := map[string]fyne.CanvasObject{}
	var items []*widget.FormItem
	for _, c := range controls {
		var obj fyne.CanvasObject
		switch c.Kind {
		case schemaform.ControlCheckbox:
			obj = widget.NewCheck(c.Label, nil)
		case schemaform.ControlSelect:
			obj = widget.NewSelect(c.Options, nil)
		default:
			e := widget.NewEntry()
			e.SetPlaceHolder(c.Help)
			obj = e
		}
		entries[c.Name] = obj
		label := c.Label
		if c.Required {
			label += " *"
		}
		items = append(items, widget.NewFormItem(label, obj))
	}

	dialog.ShowForm("Continue", "Submit", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		answers := map[string]any{}
		for _, c := range controls {
			switch o := entries[c.Name].(type) {
			case *widget.Check:
				answers[c.Name] = o.Checked
			case *widget.Select:
				answers[c.Name] = o.Selected
			case *widget.Entry:
				if c.Kind == schemaform.ControlNumber {
					if f, err := strconv.ParseFloat(o.Text, 64); err == nil {
						answers[c.Name] = f
						continue
					}
				}
				answers[c.Name] = o.Text
			}
		}
		if err := schemaform.Validate(n.LastSchema, answers); err != nil {
			dialog.ShowError(err, w)
			return
		}
		submit(answers)
	}, w)
}
