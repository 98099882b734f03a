package capability

import (
	"fmt"

	"agentjungle/internal/domain"
)

func analysisPrompt(request string) string {
	return fmt.Sprintf(`Analyze this user request and determine what type of specialized agent would be best suited to handle it.

User Request: %s

Please provide a JSON response with:
1. task_type: The category/type of task (e.g., "writing", "coding", "research", "math", "creative", "analysis")
2. agent_description: A brief description of what kind of agent would handle this (e.g., "Python programming assistant", "Creative writing helper")
3. complexity: "simple" or "complex"
4. requires_delegation: true if this needs a specialized agent, false if the coordinator can handle it directly

Respond only with valid JSON.`, request)
}

func creationPrompt(desc domain.TaskDescriptor) string {
	return fmt.Sprintf(`Create a specialized AI agent based on this task analysis:

Task Type: %s
Agent Description: %s
Complexity: %s

Please provide a JSON response with:
1. name: A concise name for the agent (e.g., "PythonCodingAgent", "CreativeWritingAgent")
2. description: Detailed description of the agent's capabilities and specialization
3. system_prompt: A comprehensive system prompt that defines the agent's role, expertise, and behavior
4. task_type: The type of tasks this agent specializes in

Make the agent highly specialized and expert in its domain.
Respond only with valid JSON.`, desc.TaskType, desc.AgentDescription, desc.Complexity)
}

func delegationPrompt(agent domain.AgentRecord, request string) string {
	return fmt.Sprintf(`You are %s and you specialize in: %s

Please handle this user request with your specialized expertise:

User Request: %s

Provide a helpful, detailed, and expert response based on your specialization.`, agent.Name, agent.Description, request)
}

func directPrompt(identity, request string) string {
	return fmt.Sprintf(`You are %s, the coordinator of an AI agents system. Handle this request directly:

User Request: %s

Provide a helpful and comprehensive response.`, identity, request)
}
