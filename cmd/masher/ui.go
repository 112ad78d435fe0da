package main

import (
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"masher/internal/core/automasher"
)

type masherTheme struct {
	base fyne.Theme
}

func newMasherTheme() fyne.Theme {
	return &masherTheme{base: theme.DarkTheme()}
}

func (t *masherTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 0x0e, G: 0x11, B: 0x16, A: 0xff}
	case theme.ColorNameHeaderBackground:
		return color.NRGBA{R: 0x13, G: 0x17, B: 0x1e, A: 0xff}
	case theme.ColorNameButton:
		return color.NRGBA{R: 0x1c, G: 0x24, B: 0x2e, A: 0xff}
	case theme.ColorNameDisabledButton:
		return color.NRGBA{R: 0x15, G: 0x1a, B: 0x21, A: 0xff}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 0x13, G: 0x19, B: 0x20, A: 0xff}
	case theme.ColorNameInputBorder, theme.ColorNameSeparator:
		return color.NRGBA{R: 0x2a, G: 0x34, B: 0x41, A: 0xff}
	case theme.ColorNamePrimary, theme.ColorNameHyperlink:
		return color.NRGBA{R: 0x66, G: 0xb8, B: 0xff, A: 0xff}
	case theme.ColorNameFocus:
		return color.NRGBA{R: 0x7a, G: 0xc4, B: 0xff, A: 0x66}
	case theme.ColorNameHover:
		return color.NRGBA{R: 0x7a, G: 0xc4, B: 0xff, A: 0x22}
	case theme.ColorNamePressed:
		return color.NRGBA{R: 0x7a, G: 0xc4, B: 0xff, A: 0x40}
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0x66, G: 0xb8, B: 0xff, A: 0x44}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 0xf1, G: 0xf4, B: 0xf8, A: 0xff}
	case theme.ColorNamePlaceHolder:
		return color.NRGBA{R: 0xa8, G: 0xb2, B: 0xc1, A: 0xff}
	case theme.ColorNameError:
		return color.NRGBA{R: 0xff, G: 0x82, B: 0x82, A: 0xff}
	case theme.ColorNameWarning:
		return color.NRGBA{R: 0xff, G: 0x9f, B: 0x5a, A: 0xff}
	case theme.ColorNameSuccess:
		return color.NRGBA{R: 0x7f, G: 0xd4, B: 0xa8, A: 0xff}
	}
	return t.base.Color(name, variant)
}

func (t *masherTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *masherTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *masherTheme) Size(name fyne.ThemeSizeName) float32 {
	switch name {
	case theme.SizeNamePadding, theme.SizeNameInnerPadding:
		return 8
	case theme.SizeNameInputRadius:
		return 8
	}
	return t.base.Size(name)
}

func debugLogsEnabled() bool {
	return strings.TrimSpace(os.Getenv("DEBUG")) == "1"
}

func stateText(state automasher.EngineState) string {
	switch state {
	case automasher.StateMashing:
		return "Mashing"
	case automasher.StateArmed:
		return "Armed: hold your three buttons during a textbox"
	case automasher.StateDeviceLost:
		return "Virtual pad lost; restart masher"
	default:
		return "Idle: bind your buttons to get started"
	}
}

func mappingLines(m automasher.Mapping, complete bool) string {
	if !complete {
		return "Nail: -\nJump: -\nHeal: -"
	}
	lines := make([]string, 0, len(automasher.Actions()))
	for _, action := range automasher.Actions() {
		button, ok := m.ButtonFor(action)
		name := "-"
		if ok {
			name = button.String()
		}
		lines = append(lines, fmt.Sprintf("%s: %s", action, name))
	}
	return strings.Join(lines, "\n")
}

func runUI(cfg config) error {
	fApp := app.New()
	fApp.Settings().SetTheme(newMasherTheme())

	window := fApp.NewWindow("Masher")
	window.Resize(fyne.NewSize(560, 460))
	window.SetFixedSize(true)
	window.CenterOnScreen()

	statusLabel := widget.NewLabel("Starting...")
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}
	mappingLabel := widget.NewLabel(mappingLines(automasher.Mapping{}, false))
	errorText := canvas.NewText("", nil)
	errorText.Color = theme.Color(theme.ColorNameError)

	logGrid := widget.NewTextGrid()
	logScroll := container.NewVScroll(logGrid)
	logScroll.SetMinSize(fyne.NewSize(0, 140))

	const maxUILogLines = 50
	var logMu sync.Mutex
	logLines := make([]string, 0, maxUILogLines)
	debugLogs := debugLogsEnabled()
	appendLogLine := func(line string) {
		if !debugLogs {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			return
		}

		logMu.Lock()
		logLines = append(logLines, line)
		if len(logLines) > maxUILogLines {
			logLines = logLines[len(logLines)-maxUILogLines:]
		}
		logText := strings.Join(logLines, "\n")
		logMu.Unlock()

		fyne.Do(func() {
			logGrid.SetText(logText)
			logScroll.ScrollToBottom()
		})
	}

	showError := func(msg string) {
		errorText.Text = msg
		errorText.Refresh()
		if msg != "" {
			appendLogLine("ERROR " + msg)
		}
	}

	logger := newSlogLogger(cfg.logLevel, appendLogLine)
	rt, err := startMasherFromConfig(cfg, logger)
	if err != nil {
		if isPermissionError(err) {
			return fmt.Errorf("%s", permissionDeniedHint())
		}
		return err
	}

	captureBtn := widget.NewButton("Bind Buttons", nil)
	captureBtn.Importance = widget.HighImportance
	suspendBtn := widget.NewButton("Suspend", nil)

	press, release := rt.engine.DutyCycle()
	pressSlider := widget.NewSlider(10, 200)
	pressSlider.Step = 1
	pressSlider.SetValue(float64(press) / float64(time.Millisecond))
	releaseSlider := widget.NewSlider(10, 200)
	releaseSlider.Step = 1
	releaseSlider.SetValue(float64(release) / float64(time.Millisecond))

	pressValue := widget.NewLabel("")
	releaseValue := widget.NewLabel("")
	pressValue.Alignment = fyne.TextAlignTrailing
	releaseValue.Alignment = fyne.TextAlignTrailing
	pressValue.TextStyle = fyne.TextStyle{Bold: true}
	releaseValue.TextStyle = fyne.TextStyle{Bold: true}
	updateTimingText := func() {
		pressValue.SetText(fmt.Sprintf("%.0f ms", pressSlider.Value))
		releaseValue.SetText(fmt.Sprintf("%.0f ms", releaseSlider.Value))
	}
	updateTimingText()

	applyTiming := func() {
		updateTimingText()
		if err := rt.applyDutyCycle(pressSlider.Value, releaseSlider.Value); err != nil {
			showError(err.Error())
		}
	}
	pressSlider.OnChanged = func(float64) { applyTiming() }
	releaseSlider.OnChanged = func(float64) { applyTiming() }

	suspendBtn.OnTapped = func() {
		suspended := !rt.engine.Suspended()
		rt.engine.SetSuspended(suspended)
		if suspended {
			suspendBtn.SetText("Resume")
		} else {
			suspendBtn.SetText("Suspend")
		}
	}

	captureBtn.OnTapped = func() {
		if rt.session.CaptureActive() {
			rt.session.CancelCapture()
			return
		}
		showError("")
		if err := rt.session.BeginCapture(automasher.CaptureConfig{}); err != nil {
			showError(err.Error())
			return
		}
		appendLogLine("INFO Button capture started")
	}

	refresh := func() {
		captureActive := rt.session.CaptureActive()
		status := rt.session.CaptureStatus()
		mapping, complete := rt.session.Mapping()
		state := rt.engine.State()

		fyne.Do(func() {
			if captureActive {
				captureBtn.SetText("Cancel Binding")
				awaiting := status.Awaiting
				statusLabel.SetText(fmt.Sprintf("Hold the button for %s...", awaiting))
				mappingLabel.SetText(mappingLines(status.Mapping, true))
				return
			}

			captureBtn.SetText("Bind Buttons")
			mappingLabel.SetText(mappingLines(mapping, complete))
			if status.TimedOut {
				statusLabel.SetText("Binding timed out; previous buttons kept")
				return
			}
			statusLabel.SetText(stateText(state))
		})
	}

	stopPolling := make(chan struct{})
	go func() {
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopPolling:
				return
			case <-ticker.C:
				refresh()
			case err := <-rt.engine.Failures():
				fyne.Do(func() {
					showError(err.Error())
				})
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var closeOnce sync.Once
	cleanup := func() {
		closeOnce.Do(func() {
			close(stopPolling)
			rt.Stop()
		})
	}

	requestQuit := func() {
		fyne.Do(func() {
			cleanup()
			if currentApp := fyne.CurrentApp(); currentApp != nil {
				currentApp.Quit()
				return
			}
			window.SetCloseIntercept(nil)
			window.Close()
		})
	}

	go func() {
		<-sigCh
		requestQuit()
	}()

	window.SetCloseIntercept(func() {
		cleanup()
		if currentApp := fyne.CurrentApp(); currentApp != nil {
			currentApp.Quit()
			return
		}
		window.SetCloseIntercept(nil)
		window.Close()
	})

	titleText := canvas.NewText("MASHER", color.NRGBA{R: 0x75, G: 0xbd, B: 0xff, A: 0xff})
	titleText.TextStyle = fyne.TextStyle{Bold: true}
	titleText.TextSize = 30

	accentLine := canvas.NewRectangle(color.NRGBA{R: 0x66, G: 0xb8, B: 0xff, A: 0xff})
	accentLine.SetMinSize(fyne.NewSize(220, 3))

	newSliderControl := func(label string, value *widget.Label, slider *widget.Slider) fyne.CanvasObject {
		title := widget.NewLabel(label)
		title.TextStyle = fyne.TextStyle{Bold: true}
		head := container.NewBorder(nil, nil, title, value, nil)
		return container.NewVBox(head, slider)
	}

	mappingCard := widget.NewCard("Buttons", "Hold all three during a textbox to mash", mappingLabel)
	timingCard := widget.NewCard("Timing", "", container.NewVBox(
		newSliderControl("Press", pressValue, pressSlider),
		newSliderControl("Release", releaseValue, releaseSlider),
	))
	controlsRow := container.NewGridWithColumns(2, captureBtn, suspendBtn)

	mainContent := container.NewVBox(
		titleText,
		accentLine,
		statusLabel,
		container.NewGridWithColumns(2, mappingCard, timingCard),
		controlsRow,
		errorText,
	)
	mainPanel := container.NewPadded(mainContent)

	var rootContent fyne.CanvasObject = mainPanel
	if debugLogs {
		logsCard := widget.NewCard("Logs", "", logScroll)
		split := container.NewVSplit(mainPanel, logsCard)
		split.SetOffset(0.68)
		rootContent = split
	}

	refresh()
	window.SetContent(rootContent)
	window.ShowAndRun()
	cleanup()
	return nil
}
