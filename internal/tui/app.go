// Package tui is the terminal UI of halctl: a live pin table over a
// remote HAL component with a set-value dialog for writable pins.
package tui

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kay54068/halremote/internal/config"
	"github.com/kay54068/halremote/internal/hal"
	"github.com/kay54068/halremote/internal/halremote"
)

// App represents the main application UI
type App struct {
	app       *tview.Application
	config    *config.Config
	component *halremote.RemoteComponent
	container *hal.Group
	logger    *zap.Logger

	pages     *tview.Pages
	pinTable  *tview.Table
	logView   *tview.TextView
	statusBar *tview.TextView

	pinRows map[string]int
	pins    []*hal.Pin
	ready   bool
}

// NewApp creates a new application UI. The remote component is built by
// the caller; the logger returned by Logger should be handed to it so
// protocol logs land in the log pane.
func NewApp(cfg *config.Config, container *hal.Group) *App {
	a := &App{
		app:       tview.NewApplication(),
		config:    cfg,
		container: container,
		pinRows:   make(map[string]int),
	}

	a.pins = container.Pins()
	sort.Slice(a.pins, func(i, j int) bool { return a.pins[i].Name() < a.pins[j].Name() })

	a.setupUI()
	return a
}

// SetComponent attaches the remote component and subscribes the UI to
// its observables.
func (a *App) SetComponent(component *halremote.RemoteComponent) {
	a.component = component

	component.RegisterStateHandler(func(state halremote.ConnectionState) {
		a.app.QueueUpdateDraw(func() {
			a.updateStatusBar()
			a.updatePinTable()
		})
	})

	for _, pin := range a.pins {
		pin := pin
		pin.OnChange(func(p *hal.Pin, fromRemote bool) {
			a.app.QueueUpdateDraw(func() {
				a.updatePinRow(pin)
			})
		})
	}

	a.updateStatusBar()
}

// Logger returns a zap logger writing into the log pane.
func (a *App) Logger() *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = "T"
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(tview.ANSIWriter(a.logView)),
		zapcore.InfoLevel,
	)
	a.logger = zap.New(core)
	return a.logger
}

// setupUI initializes all UI components
func (a *App) setupUI() {
	a.pages = tview.NewPages()

	a.setupLogView()
	a.setupPinTable()
	a.setupStatusBar()

	flex := tview.NewFlex()
	flex.SetDirection(tview.FlexRow).
		AddItem(a.pinTable, 0, 8, true).
		AddItem(a.logView, 8, 1, false).
		AddItem(a.statusBar, 1, 1, false)

	a.pages.AddPage("main", flex, true, true)

	a.setupKeyBindings()
}

func (a *App) setupLogView() {
	a.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetChangedFunc(func() {
			a.app.Draw()
		})
	a.logView.SetBorder(true).SetTitle("Logs")
}

func (a *App) setupPinTable() {
	a.pinTable = tview.NewTable().SetBorders(false)
	a.pinTable.SetBorder(true).SetTitle("Pins")
	a.pinTable.SetFixed(1, 0)
	a.pinTable.SetSelectable(true, false)

	headers := []string{"Pin", "Type", "Dir", "Handle", "Value", "Synced"}
	for col, header := range headers {
		a.pinTable.SetCell(0, col,
			tview.NewTableCell(header).
				SetAlign(tview.AlignLeft).
				SetSelectable(false).
				SetTextColor(tcell.ColorYellow).
				SetExpansion(1))
	}

	for i, pin := range a.pins {
		row := i + 1
		a.pinRows[pin.Name()] = row
		a.pinTable.SetCell(row, 0, tview.NewTableCell(pin.Name()))
		a.pinTable.SetCell(row, 1, tview.NewTableCell(string(pin.Type())))
		a.pinTable.SetCell(row, 2, tview.NewTableCell(string(pin.Direction())))
		a.updatePinRow(pin)
	}

	a.pinTable.SetSelectedFunc(func(row, column int) {
		if row == 0 || row > len(a.pins) {
			return
		}
		pin := a.pins[row-1]
		if pin.Direction() == hal.DirectionIn {
			a.logger.Info("pin is an input, not writable", zap.String("pin", pin.Name()))
			return
		}
		a.showSetValueDialog(pin)
	})
}

func (a *App) setupStatusBar() {
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.updateStatusBar()
}

// setupKeyBindings sets up global key bindings
func (a *App) setupKeyBindings() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			if a.component != nil {
				a.component.Close()
			}
			a.app.Stop()
			return nil
		}
		if event.Rune() == 's' {
			a.toggleReady()
			return nil
		}
		return event
	})
}

// toggleReady starts or stops the session
func (a *App) toggleReady() {
	if a.component == nil {
		return
	}
	a.ready = !a.ready
	a.component.SetReady(a.ready)
	if a.ready {
		a.logger.Info("session start requested")
	} else {
		a.logger.Info("session stop requested")
	}
}

func (a *App) updatePinRow(pin *hal.Pin) {
	row, ok := a.pinRows[pin.Name()]
	if !ok {
		return
	}

	handleText := "-"
	if handle, ok := pin.Handle(); ok {
		handleText = strconv.FormatUint(uint64(handle), 10)
	}
	a.pinTable.SetCell(row, 3, tview.NewTableCell(handleText))
	a.pinTable.SetCell(row, 4, tview.NewTableCell(formatValue(pin)))

	syncedText := "no"
	syncedColor := tcell.ColorRed
	if pin.Synced() {
		syncedText = "yes"
		syncedColor = tcell.ColorGreen
	}
	a.pinTable.SetCell(row, 5, tview.NewTableCell(syncedText).SetTextColor(syncedColor))
}

func (a *App) updatePinTable() {
	for _, pin := range a.pins {
		a.updatePinRow(pin)
	}
}

// updateStatusBar updates the status bar
func (a *App) updateStatusBar() {
	state := halremote.StateDisconnected
	errString := ""
	if a.component != nil {
		state = a.component.State()
		_, errString = a.component.Error()
	}

	color := "red"
	switch state {
	case halremote.StateConnected:
		color = "green"
	case halremote.StateConnecting:
		color = "yellow"
	}

	a.statusBar.Clear()
	fmt.Fprintf(a.statusBar, "Component: %s | State: [%s]%s[white] | halrcmd: %s | halrcomp: %s | s: start/stop  Esc: quit",
		a.config.Component.Name, color, state,
		a.config.Component.HalrcmdURI, a.config.Component.HalrcompURI)
	if errString != "" {
		fmt.Fprintf(a.statusBar, " | [red]%s[white]", errString)
	}
}

// showSetValueDialog shows a dialog for writing a pin value
func (a *App) showSetValueDialog(pin *hal.Pin) {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(fmt.Sprintf("Set %s (%s)", pin.Name(), pin.Type()))

	if pin.Type() == hal.PinTypeBit {
		value := pin.Bit()
		form.AddCheckbox("Value", value, func(checked bool) {
			value = checked
		})
		form.AddButton("Set", func() {
			pin.SetBit(value)
			a.pages.RemovePage("dialog")
		})
	} else {
		valueStr := formatValue(pin)
		form.AddInputField("Value", valueStr, 20, nil, func(text string) {
			valueStr = text
		})
		form.AddButton("Set", func() {
			value, err := strconv.ParseFloat(valueStr, 64)
			if err != nil {
				a.logger.Error("invalid value", zap.String("input", valueStr))
			} else if err := pin.SetValue(value); err != nil {
				a.logger.Error("pin write failed", zap.Error(err))
			}
			a.pages.RemovePage("dialog")
		})
	}

	form.AddButton("Cancel", func() {
		a.pages.RemovePage("dialog")
	})

	modal := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(form, 40, 1, true).
			AddItem(nil, 0, 1, false),
			10, 1, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("dialog", modal, true, true)
}

// Run starts the application
func (a *App) Run() error {
	return a.app.SetRoot(a.pages, true).EnableMouse(true).Run()
}

func formatValue(pin *hal.Pin) string {
	switch pin.Type() {
	case hal.PinTypeBit:
		if pin.Bit() {
			return "ON"
		}
		return "OFF"
	case hal.PinTypeFloat:
		return strconv.FormatFloat(pin.Float(), 'g', -1, 64)
	case hal.PinTypeS32:
		return strconv.FormatInt(int64(pin.S32()), 10)
	case hal.PinTypeU32:
		return strconv.FormatUint(uint64(pin.U32()), 10)
	}
	return ""
}
