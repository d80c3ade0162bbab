package events

import (
	"encoding/json"
	"fmt"
)

// SetFinderData sets the Data field with FinderData in a type-safe way.
func (e *RegistryEvent) SetFinderData(data FinderData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert FinderData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetFinderData retrieves FinderData from the Data field.
func (e *RegistryEvent) GetFinderData() (*FinderData, error) {
	var data FinderData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse FinderData: %w", err)
	}
	return &data, nil
}

// SetKernelsListedData sets the Data field with KernelsListedData in a type-safe way.
func (e *RegistryEvent) SetKernelsListedData(data KernelsListedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert KernelsListedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetKernelsListedData retrieves KernelsListedData from the Data field.
func (e *RegistryEvent) GetKernelsListedData() (*KernelsListedData, error) {
	var data KernelsListedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse KernelsListedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}
