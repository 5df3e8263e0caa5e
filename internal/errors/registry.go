package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://vango.dev/docs/persist/errors/"

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Config (P100-P199)
	"P100": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "persist.json could not be read or is not valid JSON.",
		DocURL:   docBase + "P100",
	},
	"P101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or not recognised.",
		DocURL:   docBase + "P101",
	},
	"P102": {
		Category: CategoryConfig,
		Message:  "Invalid environment override",
		Detail:   "A PERSIST_* environment variable could not be parsed.",
		DocURL:   docBase + "P102",
	},

	// Storage (P200-P299)
	"P200": {
		Category: CategoryStorage,
		Message:  "Storage backend unavailable",
		Detail:   "The configured backend could not be opened.",
		DocURL:   docBase + "P200",
	},
	"P201": {
		Category: CategoryStorage,
		Message:  "Storage operation failed",
		Detail:   "The backend returned an error while reading or writing a key.",
		DocURL:   docBase + "P201",
	},
	"P202": {
		Category: CategoryStorage,
		Message:  "Key not found",
		Detail:   "The store has no entry for the requested key.",
		DocURL:   docBase + "P202",
	},
	"P203": {
		Category: CategoryStorage,
		Message:  "Value is not valid JSON",
		Detail:   "Stored values must be JSON text.",
		DocURL:   docBase + "P203",
	},

	// Server (P300-P399)
	"P300": {
		Category: CategoryServer,
		Message:  "Server failed",
		Detail:   "The HTTP listener stopped unexpectedly.",
		DocURL:   docBase + "P300",
	},

	// CLI (P400-P499)
	"P400": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		DocURL:   docBase + "P400",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
