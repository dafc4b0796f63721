// Package crew runs a fixed sequence of LLM tasks, each driven by an agent
// persona loaded from YAML. Agents may declare tools (news search, page
// scraping) whose output is handed to the model as context before the call.
package crew
