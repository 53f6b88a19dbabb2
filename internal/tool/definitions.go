package tool

import (
	"github.com/cloudwego/eino/schema"
)

// Definitions returns the tool schemas advertised to the model.
func Definitions() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: NameCreateFile,
			Desc: "Create a new file with contents. Fails if the file already exists.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"path":     {Type: schema.String, Desc: "path of the file, relative to the project directory", Required: true},
				"contents": {Type: schema.String, Desc: "contents to write", Required: true},
			}),
		},
		{
			Name: NameEditFile,
			Desc: "Edit an existing file by replacing all occurrences of old_str with new_str",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"path":    {Type: schema.String, Desc: "path of the file to edit, relative to the project directory", Required: true},
				"old_str": {Type: schema.String, Desc: "exact text to replace; must occur in the file", Required: true},
				"new_str": {Type: schema.String, Desc: "string to replace with", Required: true},
			}),
		},
		{
			Name: NameReadFile,
			Desc: "Read a file on the local filesystem",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"path": {Type: schema.String, Desc: "path of the file to read", Required: true},
			}),
		},
		{
			Name: NameReadDir,
			Desc: "Read entries in a directory on the local filesystem",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"path": {Type: schema.String, Desc: "path of the directory to read; empty for the project directory", Required: true},
			}),
		},
		{
			Name: NameRunCommand,
			Desc: "Run a shell command via the system shell. Returns the command's success flag, exit status code (if available), stdout, and stderr",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"command": {Type: schema.String, Desc: "the shell command to run", Required: true},
			}),
		},
	}
}
