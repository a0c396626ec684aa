package tools

import (
	"encoding/json"
	"testing"

	"github.com/localrivet/schemarecall/internal/ledger"
)

func TestResultFlattensIntoResponse(t *testing.T) {
	resp := TrainResponse{Result: Success(), ID: "abc", Kind: string(ledger.KindDDL)}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal TrainResponse: %v", err)
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(data, &jsonMap); err != nil {
		t.Fatalf("Failed to unmarshal JSON into map: %v", err)
	}

	if jsonMap["status"] != StatusSuccess {
		t.Errorf("Expected status='success', got '%v'", jsonMap["status"])
	}
	if jsonMap["id"] != "abc" {
		t.Errorf("Expected id='abc', got '%v'", jsonMap["id"])
	}
	if _, ok := jsonMap["error"]; ok {
		t.Errorf("Expected error to be omitted on success, got '%v'", jsonMap["error"])
	}
	if _, ok := jsonMap["code"]; ok {
		t.Errorf("Expected code to be omitted on success, got '%v'", jsonMap["code"])
	}
}

func TestResultFail(t *testing.T) {
	resp := RemoveTrainingDataResponse{Result: Success()}
	resp.Fail("NOT_FOUND", "no record with id x")

	if resp.OK() {
		t.Error("Expected OK() to be false after Fail")
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal RemoveTrainingDataResponse: %v", err)
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(data, &jsonMap); err != nil {
		t.Fatalf("Failed to unmarshal JSON into map: %v", err)
	}

	if jsonMap["status"] != StatusError {
		t.Errorf("Expected status='error', got '%v'", jsonMap["status"])
	}
	if jsonMap["code"] != "NOT_FOUND" {
		t.Errorf("Expected code='NOT_FOUND', got '%v'", jsonMap["code"])
	}
	if jsonMap["removed"] != false {
		t.Errorf("Expected removed=false, got '%v'", jsonMap["removed"])
	}
}

func TestQuestionSQLRequestFieldNames(t *testing.T) {
	var req TrainQuestionSQLRequest
	if err := json.Unmarshal([]byte(`{"question":"how many rows","sql":"SELECT COUNT(*) FROM t"}`), &req); err != nil {
		t.Fatalf("Failed to unmarshal TrainQuestionSQLRequest: %v", err)
	}
	if req.Question != "how many rows" || req.SQL != "SELECT COUNT(*) FROM t" {
		t.Errorf("Unexpected request: %+v", req)
	}
}
