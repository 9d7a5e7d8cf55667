package wfjson

// workflowSchema is the JSON Schema every workflow document must satisfy
// before node construction begins. Structural errors (missing ids, wrong
// types) are caught here with precise paths; semantic errors (unknown node
// types, cycles) are the registry's and graph's concern.
const workflowSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Workflow",
  "type": "object",
  "required": ["id", "name", "nodes"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "config": {"type": "object"}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1},
          "fromOutput": {"type": "string"},
          "toInput": {"type": "string"}
        }
      }
    }
  }
}`
