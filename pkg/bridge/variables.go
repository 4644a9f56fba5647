package bridge

import "github.com/zurustar/instrscript/pkg/value"

// Callback type values reported by $NI_CALLBACK_TYPE.
const (
	CallbackInit       int64 = 1
	CallbackNote       int64 = 2
	CallbackRelease    int64 = 3
	CallbackController int64 = 4
	CallbackRPN        int64 = 5
	CallbackNRPN       int64 = 6
)

func constant(name string, v int64) *Variable {
	return &Variable{Name: name, Type: value.TypeInt, Const: true, Value: value.Int(v)}
}

func triggerVar(name string, get func(t *Trigger) int64) *Variable {
	return &Variable{
		Name: name,
		Type: value.TypeInt,
		Get: func(c *Call) value.Value {
			return value.Int(get(&c.Trigger))
		},
	}
}

func builtinVariables() []*Variable {
	return []*Variable{
		triggerVar("$EVENT_ID", func(t *Trigger) int64 { return t.EventID }),
		triggerVar("$EVENT_NOTE", func(t *Trigger) int64 { return t.Note }),
		triggerVar("$EVENT_VELOCITY", func(t *Trigger) int64 { return t.Velocity }),
		triggerVar("$CC_NUM", func(t *Trigger) int64 { return t.Controller }),
		triggerVar("$CC_VALUE", func(t *Trigger) int64 { return t.ControllerValue }),
		triggerVar("$RPN_ADDRESS", func(t *Trigger) int64 { return t.ParamAddress }),
		triggerVar("$RPN_VALUE", func(t *Trigger) int64 { return t.ParamValue }),
		{
			// microseconds since the engine started
			Name: "$ENGINE_UPTIME",
			Type: value.TypeInt,
			Unit: value.UnitTime,
			Get: func(c *Call) value.Value {
				return value.Int(c.Tick * c.MicrosPerTick)
			},
		},
		{
			Name: "$NI_CALLBACK_TYPE",
			Type: value.TypeInt,
			Get: func(c *Call) value.Value {
				return value.Int(c.Callback)
			},
		},
		constant("$NI_CB_TYPE_INIT", CallbackInit),
		constant("$NI_CB_TYPE_NOTE", CallbackNote),
		constant("$NI_CB_TYPE_RELEASE", CallbackRelease),
		constant("$NI_CB_TYPE_CONTROLLER", CallbackController),
		constant("$NI_CB_TYPE_RPN", CallbackRPN),
		constant("$NI_CB_TYPE_NRPN", CallbackNRPN),
		constant("$EVENT_PAR_NOTE", int64(ControlNote)),
		constant("$EVENT_PAR_VELOCITY", int64(ControlVelocity)),
		constant("$EVENT_PAR_VOLUME", int64(ControlVolume)),
		constant("$EVENT_PAR_TUNE", int64(ControlTune)),
		constant("$EVENT_PAR_PAN", int64(ControlPan)),
		constant("$EVENT_PAR_CUTOFF", int64(ControlCutoff)),
		constant("$EVENT_PAR_RESONANCE", int64(ControlResonance)),
	}
}
