// Package robot holds the safety properties of the reference robot: nine
// levels from SystemOff up to SystemMoving, two buttons and two LEDs.
package robot

import (
	"errors"
	"time"

	"github.com/comalice/safetyx"
)

// Waits before the automatic transitions of the powered levels.
const (
	PowerOnDelay     = 1 * time.Second
	StartMovingDelay = 5 * time.Second
	StopMovingDelay  = 5 * time.Second
)

// Properties is the configured machine plus handles to its parts, so callers
// and tests can trigger events and inspect levels without name lookups.
type Properties struct {
	Machine *safetyx.Machine
	Period  time.Duration

	SystemOff        *safetyx.Level
	ShuttingDown     *safetyx.Level
	Braking          *safetyx.Level
	StartingUp       *safetyx.Level
	Emergency        *safetyx.Level
	EmergencyBraking *safetyx.Level
	SystemOn         *safetyx.Level
	MotorPowerOn     *safetyx.Level
	SystemMoving     *safetyx.Level

	DoSystemOn     *safetyx.Event
	DoSystemOff    *safetyx.Event
	Abort          *safetyx.Event
	Shutdown       *safetyx.Event
	SystemStarted  *safetyx.Event
	MotorsHalted   *safetyx.Event
	StartMoving    *safetyx.Event
	StopMoving     *safetyx.Event
	EmergencyEvent *safetyx.Event
	ResetEmergency *safetyx.Event
	PowerOff       *safetyx.Event
	PowerOn        *safetyx.Event

	ButtonPause safetyx.InputID
	ButtonMode  safetyx.InputID
	GreenLED    safetyx.OutputID
	RedLED      safetyx.OutputID
}

// New builds and validates the robot safety properties for a cycle period.
func New(period time.Duration, opts ...safetyx.Option) (*Properties, error) {
	if period <= 0 {
		return nil, errors.New("robot: period must be positive")
	}
	p := &Properties{
		Machine: safetyx.NewMachine("robot", opts...),
		Period:  period,

		SystemOff:        safetyx.NewLevel("SystemOff", "System is offline"),
		ShuttingDown:     safetyx.NewLevel("ShuttingDown", "System shutting down"),
		Braking:          safetyx.NewLevel("Braking", "System braking"),
		StartingUp:       safetyx.NewLevel("StartingUp", "System starting up"),
		Emergency:        safetyx.NewLevel("Emergency", "Emergency"),
		EmergencyBraking: safetyx.NewLevel("EmergencyBraking", "System braking after emergency"),
		SystemOn:         safetyx.NewLevel("SystemOn", "System is online"),
		MotorPowerOn:     safetyx.NewLevel("MotorPowerOn", "Motors powered"),
		SystemMoving:     safetyx.NewLevel("SystemMoving", "System moving"),

		DoSystemOn:     safetyx.NewEvent("doSystemOn"),
		DoSystemOff:    safetyx.NewEvent("doSystemOff"),
		Abort:          safetyx.NewEvent("abort"),
		Shutdown:       safetyx.NewEvent("shutdown"),
		SystemStarted:  safetyx.NewEvent("systemStarted"),
		MotorsHalted:   safetyx.NewEvent("motorsHalted"),
		StartMoving:    safetyx.NewEvent("startMoving"),
		StopMoving:     safetyx.NewEvent("stopMoving"),
		EmergencyEvent: safetyx.NewEvent("emergency"),
		ResetEmergency: safetyx.NewEvent("resetEmergency"),
		PowerOff:       safetyx.NewEvent("powerOff"),
		PowerOn:        safetyx.NewEvent("powerOn"),
	}
	if err := p.configure(); err != nil {
		return nil, err
	}
	if err := p.Machine.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// waited reports whether l has been current for at least d.
func (p *Properties) waited(l *safetyx.Level, d time.Duration) bool {
	return time.Duration(l.NofActivations())*p.Period >= d
}

func (p *Properties) configure() error {
	m := p.Machine
	var errs []error
	try := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// Critical IO. An unreadable pause button reads as pressed (false), an
	// unreadable mode button as released.
	var err error
	p.ButtonPause, err = m.IO().AddInput("buttonPause", false)
	try(err)
	p.ButtonMode, err = m.IO().AddInput("buttonMode", true)
	try(err)
	p.GreenLED, err = m.IO().AddOutput("greenLED")
	try(err)
	p.RedLED, err = m.IO().AddOutput("redLED")
	try(err)

	// Ordinal order matters for the range registrations below.
	for _, l := range []*safetyx.Level{
		p.SystemOff, p.ShuttingDown, p.Braking, p.StartingUp, p.Emergency,
		p.EmergencyBraking, p.SystemOn, p.MotorPowerOn, p.SystemMoving,
	} {
		try(m.AddLevel(l))
	}

	try(p.SystemOff.AddEvent(p.DoSystemOn, p.SystemOn, safetyx.Public))
	try(p.ShuttingDown.AddEvent(p.Shutdown, p.SystemOff, safetyx.Private))
	try(p.Braking.AddEvent(p.MotorsHalted, p.ShuttingDown, safetyx.Private))
	try(p.StartingUp.AddEvent(p.SystemStarted, p.SystemOn, safetyx.Private))
	try(p.Emergency.AddEvent(p.ResetEmergency, p.SystemOn, safetyx.Private))
	try(p.EmergencyBraking.AddEvent(p.MotorsHalted, p.Emergency, safetyx.Private))
	try(p.SystemOn.AddEvent(p.PowerOn, p.MotorPowerOn, safetyx.Public))
	try(p.SystemOn.AddEvent(p.DoSystemOff, p.ShuttingDown, safetyx.Public))
	try(p.MotorPowerOn.AddEvent(p.StartMoving, p.SystemMoving, safetyx.Public))
	try(p.MotorPowerOn.AddEvent(p.PowerOff, p.SystemOn, safetyx.Public))
	try(p.SystemMoving.AddEvent(p.Abort, p.Braking, safetyx.Public))
	try(p.SystemMoving.AddEvent(p.StopMoving, p.MotorPowerOn, safetyx.Public))
	try(p.SystemMoving.AddEvent(p.EmergencyEvent, p.Emergency, safetyx.Public))

	try(m.AddEventToAllLevelsBetween(p.Emergency, p.MotorPowerOn, p.Abort, p.ShuttingDown, safetyx.Public))
	try(m.AddEventToAllLevelsBetween(p.SystemOn, p.MotorPowerOn, p.EmergencyEvent, p.Emergency, safetyx.Public))

	ignoreButtons := []safetyx.InputAction{safetyx.Ignore(p.ButtonPause), safetyx.Ignore(p.ButtonMode)}
	watchPause := []safetyx.InputAction{
		safetyx.Check(p.ButtonPause, false, p.EmergencyEvent),
		safetyx.Ignore(p.ButtonMode),
	}
	try(p.SystemOff.SetInputActions(ignoreButtons...))
	try(p.ShuttingDown.SetInputActions(ignoreButtons...))
	try(p.Braking.SetInputActions(ignoreButtons...))
	try(p.StartingUp.SetInputActions(ignoreButtons...))
	try(p.Emergency.SetInputActions(
		safetyx.Ignore(p.ButtonPause),
		safetyx.Check(p.ButtonMode, false, p.ResetEmergency),
	))
	try(p.EmergencyBraking.SetInputActions(ignoreButtons...))
	try(p.SystemOn.SetInputActions(watchPause...))
	try(p.MotorPowerOn.SetInputActions(watchPause...))
	try(p.SystemMoving.SetInputActions(watchPause...))

	leds := func(green, red bool) []safetyx.OutputAction {
		return []safetyx.OutputAction{safetyx.Set(p.GreenLED, green), safetyx.Set(p.RedLED, red)}
	}
	try(p.SystemOff.SetOutputActions(leds(false, false)...))
	try(p.ShuttingDown.SetOutputActions(leds(false, true)...))
	try(p.Braking.SetOutputActions(leds(false, true)...))
	try(p.StartingUp.SetOutputActions(leds(true, false)...))
	try(p.Emergency.SetOutputActions(leds(true, true)...))
	try(p.EmergencyBraking.SetOutputActions(leds(true, true)...))
	try(p.SystemOn.SetOutputActions(leds(true, false)...))
	try(p.MotorPowerOn.SetOutputActions(leds(true, false)...))
	try(p.SystemMoving.SetOutputActions(leds(true, false)...))

	try(p.SystemOff.SetLevelAction(func(sc *safetyx.Context) {
		// At startup the off level idles until doSystemOn; it ends the process
		// once reached through the shutdown path or asked to shut down.
		if sc.EnteredFrom() == nil && !sc.ShutdownRequested() {
			return
		}
		_ = sc.StopCycle()
		_ = sc.StopExecutor()
	}))
	try(p.ShuttingDown.SetLevelAction(func(sc *safetyx.Context) {
		_ = sc.StopCycle()
		_ = sc.TriggerEvent(p.Shutdown)
	}))
	try(p.Braking.SetLevelAction(func(sc *safetyx.Context) {
		// No standstill input is wired; the drives are taken as halted at once.
		_ = sc.TriggerEvent(p.MotorsHalted)
	}))
	try(p.StartingUp.SetLevelAction(func(sc *safetyx.Context) {
		_ = sc.StartCycle()
		_ = sc.TriggerEvent(p.SystemStarted)
	}))
	try(p.EmergencyBraking.SetLevelAction(func(sc *safetyx.Context) {
		_ = sc.TriggerEvent(p.MotorsHalted)
	}))
	try(p.SystemOn.SetLevelAction(func(sc *safetyx.Context) {
		if p.waited(p.SystemOn, PowerOnDelay) {
			_ = sc.TriggerEvent(p.PowerOn)
		}
	}))
	try(p.MotorPowerOn.SetLevelAction(func(sc *safetyx.Context) {
		if p.waited(p.MotorPowerOn, StartMovingDelay) {
			_ = sc.TriggerEvent(p.StartMoving)
		}
	}))
	try(p.SystemMoving.SetLevelAction(func(sc *safetyx.Context) {
		if p.waited(p.SystemMoving, StopMovingDelay) {
			_ = sc.TriggerEvent(p.StopMoving)
		}
	}))

	try(m.SetEntryLevel(p.SystemOff))
	try(m.SetOffLevel(p.SystemOff))
	try(m.SetExitFunction(func(sc *safetyx.Context) {
		_ = sc.TriggerEvent(p.Abort)
	}))

	return errors.Join(errs...)
}
