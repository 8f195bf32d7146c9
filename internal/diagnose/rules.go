package diagnose

import "regexp"

// Cause is one candidate explanation with its prior probability.
type Cause struct {
	Cause       string  `json:"cause"`
	Probability float64 `json:"probability"`
	Description string  `json:"description"`
}

// Rule maps symptom keywords, error codes and log patterns to canned causes
// and actions. The table is fixed; matching weights live in the engine.
type Rule struct {
	ID                 string
	Symptoms           []string
	ErrorCodes         []string
	LogPatterns        []*regexp.Regexp
	ProbableCauses     []Cause
	RecommendedActions []string
	Urgency            string
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+e))
	}
	return out
}

var rules = []Rule{
	{
		ID:          "rule_temp_spike",
		Symptoms:    []string{"temperature", "high", "spike", "overheating", "hot"},
		ErrorCodes:  []string{"E001", "TEMP_HIGH", "OVERHEAT"},
		LogPatterns: patterns(`temperature.*exceed`, `cooling.*fail`, `overheat`, `temp.*high`),
		ProbableCauses: []Cause{
			{"Cooling system malfunction", 0.85, "HVAC or internal fan failure preventing proper heat dissipation"},
			{"Ambient temperature too high", 0.70, "Room temperature exceeds instrument specifications"},
			{"Temperature sensor calibration drift", 0.65, "Sensor providing inaccurate readings"},
		},
		RecommendedActions: []string{
			"Check cooling fan operation and clean dust filters",
			"Verify HVAC system is running and set correctly",
			"Inspect temperature sensor calibration",
			"Review room temperature conditions",
			"Check for blocked air vents",
		},
		Urgency: "high",
	},
	{
		ID:          "rule_temp_drop",
		Symptoms:    []string{"temperature", "low", "cold", "freezing", "drop"},
		ErrorCodes:  []string{"E002", "TEMP_LOW"},
		LogPatterns: patterns(`temperature.*below`, `heating.*fail`, `temp.*low`),
		ProbableCauses: []Cause{
			{"Heating element failure", 0.80, "Primary heating system not functioning"},
			{"Power supply issue", 0.70, "Insufficient power to heating elements"},
		},
		RecommendedActions: []string{
			"Inspect heating element operation",
			"Check power supply connections",
			"Verify temperature controller settings",
			"Test heating element resistance",
		},
		Urgency: "medium",
	},
	{
		ID:          "rule_error_burst",
		Symptoms:    []string{"repeated errors", "frequent failures", "error burst", "multiple errors", "many errors"},
		ErrorCodes:  []string{"E003", "E004", "COMM_ERROR"},
		LogPatterns: patterns(`error.*repeated`, `communication.*timeout`, `failed.*attempts`),
		ProbableCauses: []Cause{
			{"Communication protocol failure", 0.75, "Network or serial communication issues"},
			{"Firmware bug or corruption", 0.65, "Software malfunction requiring restart or update"},
			{"Hardware interface failure", 0.60, "Faulty communication port or cable"},
		},
		RecommendedActions: []string{
			"Restart instrument to clear error state",
			"Check network connectivity and cables",
			"Update firmware to latest version",
			"Run instrument diagnostic tests",
			"Contact technical support if persists",
		},
		Urgency: "medium",
	},
	{
		ID:          "rule_calibration_drift",
		Symptoms:    []string{"inaccurate", "calibration", "drift", "offset", "readings wrong"},
		ErrorCodes:  []string{"E005", "CAL_FAIL", "ACCURACY"},
		LogPatterns: patterns(`calibration.*fail`, `accuracy.*low`, `drift.*detect`),
		ProbableCauses: []Cause{
			{"Sensor calibration expired", 0.85, "Sensors need recalibration per maintenance schedule"},
			{"Environmental factors", 0.70, "Temperature, humidity, or pressure affecting readings"},
			{"Sensor degradation", 0.60, "Physical wear or contamination of sensors"},
		},
		RecommendedActions: []string{
			"Perform full system calibration",
			"Clean all sensors",
			"Verify environmental conditions are stable",
			"Check calibration standards are within spec",
			"Replace worn sensors if necessary",
		},
		Urgency: "medium",
	},
	{
		ID:          "rule_communication_failure",
		Symptoms:    []string{"not responding", "connection lost", "timeout", "no response", "offline"},
		ErrorCodes:  []string{"E006", "TIMEOUT", "NO_RESPONSE"},
		LogPatterns: patterns(`timeout`, `connection.*lost`, `no.*response`, `offline`),
		ProbableCauses: []Cause{
			{"Network connectivity issue", 0.80, "Network cable, switch, or router problem"},
			{"Instrument powered off or crashed", 0.75, "Instrument in error state or power failure"},
			{"Firewall or network configuration", 0.60, "Security settings blocking communication"},
		},
		RecommendedActions: []string{
			"Check instrument power and status LEDs",
			"Verify network cable connections",
			"Test network connectivity with ping",
			"Check firewall and network settings",
			"Restart instrument and network equipment",
		},
		Urgency: "high",
	},
	{
		ID:          "rule_mechanical_failure",
		Symptoms:    []string{"noise", "vibration", "stuck", "jammed", "mechanical"},
		ErrorCodes:  []string{"E007", "MECH_ERROR", "MOTOR_FAIL"},
		LogPatterns: patterns(`motor.*fail`, `mechanical.*error`, `movement.*block`),
		ProbableCauses: []Cause{
			{"Motor or actuator failure", 0.80, "Mechanical component malfunction"},
			{"Obstruction or jamming", 0.75, "Foreign object blocking movement"},
			{"Lubrication needed", 0.60, "Moving parts require maintenance"},
		},
		RecommendedActions: []string{
			"Inspect for physical obstructions",
			"Check motor and actuator operation",
			"Lubricate moving parts per maintenance schedule",
			"Run mechanical self-test routine",
			"Contact service technician if persists",
		},
		Urgency: "high",
	},
	{
		ID:          "rule_power_issue",
		Symptoms:    []string{"power", "shutdown", "restart", "voltage", "electrical"},
		ErrorCodes:  []string{"E008", "POWER_FAIL", "VOLTAGE"},
		LogPatterns: patterns(`power.*fail`, `voltage.*out`, `shutdown.*unexpected`),
		ProbableCauses: []Cause{
			{"Power supply malfunction", 0.80, "Internal power supply failure"},
			{"Facility power instability", 0.70, "Building power fluctuations or outages"},
			{"Overload or short circuit", 0.65, "Electrical fault in instrument"},
		},
		RecommendedActions: []string{
			"Check facility power supply is stable",
			"Inspect power cables and connections",
			"Test with UPS or alternate power source",
			"Check circuit breakers and fuses",
			"Contact electrical technician",
		},
		Urgency: "critical",
	},
	{
		ID:          "rule_sample_error",
		Symptoms:    []string{"sample", "contamination", "invalid", "quality", "result error"},
		ErrorCodes:  []string{"E009", "SAMPLE_ERROR", "CONTAMINATED"},
		LogPatterns: patterns(`sample.*error`, `contamination`, `quality.*fail`),
		ProbableCauses: []Cause{
			{"Sample contamination", 0.75, "External contaminants in sample"},
			{"Improper sample preparation", 0.70, "Sample not prepared according to protocol"},
			{"Consumable contamination", 0.60, "Reagents or consumables contaminated"},
		},
		RecommendedActions: []string{
			"Inspect sample preparation procedure",
			"Check reagent and consumable quality",
			"Clean instrument sample path",
			"Run blank/control samples",
			"Replace consumables if needed",
		},
		Urgency: "low",
	},
}
