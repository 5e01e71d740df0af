package sandbox_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/internal/tools/sandbox"
)

func paramsMap(p sandbox.ExecuteParams) map[string]any {
	b, err := json.Marshal(p)
	if err != nil {
		log.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		log.Fatal(err)
	}
	return m
}

func summary(data any) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m["summary"].(string)
	return s
}

// Example_basicUsage demonstrates basic code execution.
func Example_basicUsage() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code:     `print("Hello, World!")`,
		Timeout:  10,
	}

	result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(summary(result.Data))
}

// Example_withFiles demonstrates file mounting.
func Example_withFiles() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code: `
with open('config.json', 'r') as f:
    import json
    config = json.load(f)
    print(f"App: {config['app']}, Version: {config['version']}")
`,
		Files: map[string]string{
			"config.json": `{"app": "sentinel", "version": "1.0.0"}`,
		},
		Timeout: 10,
	}

	result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(summary(result.Data))
}

// Example_multipleLanguages demonstrates executing different languages.
func Example_multipleLanguages() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	languages := []struct {
		lang string
		code string
	}{
		{"python", `print("Hello from Python")`},
		{"nodejs", `console.log("Hello from Node.js")`},
		{"bash", `echo "Hello from Bash"`},
	}

	for _, test := range languages {
		params := sandbox.ExecuteParams{
			Language: test.lang,
			Code:     test.code,
			Timeout:  10,
		}

		result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
		if err != nil {
			log.Printf("Error executing %s: %v", test.lang, err)
			continue
		}

		fmt.Printf("%s: %s\n", test.lang, summary(result.Data))
	}
}

// Example_withResourceLimits demonstrates custom resource limits.
func Example_withResourceLimits() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code: `
import time
for i in range(5):
    print(f"Iteration {i}")
    time.sleep(0.1)
`,
		Timeout:  5,
		CPULimit: 500,
		MemLimit: 256,
	}

	result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(summary(result.Data))
}

// Example_poolManagement demonstrates pool operations.
func Example_poolManagement() {
	executor, err := sandbox.NewExecutor(
		sandbox.WithPoolSize(2),
		sandbox.WithMaxPoolSize(5),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code:     `print("test")`,
		Timeout:  10,
	}

	_, err = executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Pool is ready")
}

// Example_errorHandling demonstrates error handling.
func Example_errorHandling() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code:     `print("unclosed string`,
		Timeout:  10,
	}

	result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	if !result.Success {
		fmt.Println("Execution failed (expected)")
		fmt.Println("Error output captured in result.Data")
	}
}

// Example_stdin demonstrates providing input to programs.
func Example_stdin() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code: `
import sys
name = sys.stdin.read().strip()
print(f"Hello, {name}!")
`,
		Stdin:   "Sentinel",
		Timeout: 10,
	}

	result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(summary(result.Data))
}

// Example_dataProcessing demonstrates a more complex data processing task.
func Example_dataProcessing() {
	executor, err := sandbox.NewExecutor()
	if err != nil {
		log.Fatal(err)
	}
	defer executor.Close()

	params := sandbox.ExecuteParams{
		Language: "python",
		Code: `
import json

with open('data.json', 'r') as f:
    data = json.load(f)

total = sum(item['value'] for item in data['items'])
avg = total / len(data['items'])

print(f"Total: {total}")
print(f"Average: {avg:.2f}")
print(f"Count: {len(data['items'])}")
`,
		Files: map[string]string{
			"data.json": `{
				"items": [
					{"name": "A", "value": 10},
					{"name": "B", "value": 20},
					{"name": "C", "value": 30}
				]
			}`,
		},
		Timeout: 10,
	}

	result, err := executor.Execute(context.Background(), paramsMap(params), tool.AgentContext{})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(summary(result.Data))
}
