package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const inputSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "write_ecephys_nwb input",
	"type": "object",
	"required": [
		"output_path",
		"session_id",
		"session_start_time",
		"stimulus_table_path",
		"probes",
		"running_speed"
	],
	"properties": {
		"output_path": {"type": "string", "minLength": 1},
		"session_id": {"type": "integer"},
		"session_start_time": {"type": "string", "format": "date-time"},
		"stimulus_table_path": {"type": "string", "minLength": 1},
		"probes": {
			"type": "array",
			"minItems": 1,
			"items": {"$ref": "#/definitions/probe"}
		},
		"running_speed": {
			"type": "object",
			"required": ["running_speed_path", "running_speed_timestamps_path"],
			"properties": {
				"running_speed_path": {"type": "string", "minLength": 1},
				"running_speed_timestamps_path": {"type": "string", "minLength": 1}
			}
		}
	},
	"definitions": {
		"probe": {
			"type": "object",
			"required": [
				"id",
				"name",
				"channels",
				"units",
				"spike_times_path",
				"spike_clusters_path",
				"mean_waveforms_path",
				"lfp"
			],
			"properties": {
				"id": {"type": "integer"},
				"name": {"type": "string", "minLength": 1},
				"channels": {"type": "array", "items": {"$ref": "#/definitions/channel"}},
				"units": {"type": "array", "items": {"$ref": "#/definitions/unit"}},
				"spike_times_path": {"type": "string", "minLength": 1},
				"spike_clusters_path": {"type": "string", "minLength": 1},
				"mean_waveforms_path": {"type": "string", "minLength": 1},
				"lfp": {
					"type": "object",
					"required": [
						"input_data_path",
						"input_timestamps_path",
						"input_channels_path",
						"output_path"
					],
					"properties": {
						"input_data_path": {"type": "string", "minLength": 1},
						"input_timestamps_path": {"type": "string", "minLength": 1},
						"input_channels_path": {"type": "string", "minLength": 1},
						"output_path": {"type": "string", "minLength": 1}
					}
				}
			}
		},
		"channel": {
			"type": "object",
			"required": ["id", "probe_id", "local_index"],
			"properties": {
				"id": {"type": "integer"},
				"probe_id": {"type": "integer"},
				"local_index": {"type": "integer"},
				"probe_vertical_position": {"type": "number"},
				"probe_horizontal_position": {"type": "number"},
				"valid_data": {"type": "boolean"}
			}
		},
		"unit": {
			"type": "object",
			"required": ["id", "local_index"],
			"properties": {
				"id": {"type": "integer"},
				"local_index": {"type": "integer"}
			}
		}
	}
}`

const outputSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "write_ecephys_nwb output",
	"type": "object",
	"required": ["nwb_path", "probe_outputs"],
	"properties": {
		"nwb_path": {"type": "string", "minLength": 1},
		"probe_outputs": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "nwb_path"],
				"properties": {
					"id": {"type": "integer"},
					"nwb_path": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

var (
	inputSchema  = jsonschema.MustCompileString("write_ecephys_nwb/input.json", inputSchemaJSON)
	outputSchema = jsonschema.MustCompileString("write_ecephys_nwb/output.json", outputSchemaJSON)
)

// ValidateInput checks a decoded JSON document against the input schema.
func ValidateInput(raw any) error {
	return inputSchema.Validate(raw)
}

// DecodeOptions converts a schema-valid JSON document into Options.
func DecodeOptions(raw any) (Options, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return Options{}, err
	}
	var opts Options
	if err := json.Unmarshal(buf, &opts); err != nil {
		return Options{}, fmt.Errorf("decode input: %w", err)
	}
	return opts, nil
}

// ValidateOutput checks the result payload against the output schema.
func ValidateOutput(res *Result) error {
	buf, err := json.Marshal(res)
	if err != nil {
		return err
	}
	var raw any
	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}
	return outputSchema.Validate(raw)
}
