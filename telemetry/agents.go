// File: telemetry/agents.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package telemetry

// Agent is a queue member interface with every queue it belongs to.
type Agent struct {
	Interface string   `json:"interface"`
	Queues    []string `json:"queues"`
	Paused    bool     `json:"paused"`
	Status    int      `json:"status"`
	InCall    bool     `json:"in_call"`
}

// Agents flattens queue members into one entry per unique interface, in
// order of first appearance. Paused and Status come from the first queue the
// interface was seen in; InCall is set if any queue reports the agent in a call.
func Agents(queues []QueueStatus) []Agent {
	agents := make([]Agent, 0)
	index := make(map[string]int)
	for _, q := range queues {
		for _, m := range q.Members {
			i, seen := index[m.Interface]
			if !seen {
				index[m.Interface] = len(agents)
				agents = append(agents, Agent{
					Interface: m.Interface,
					Queues:    []string{q.Name},
					Paused:    m.Paused,
					Status:    m.Status,
					InCall:    m.InCall,
				})
				continue
			}
			a := &agents[i]
			if !containsString(a.Queues, q.Name) {
				a.Queues = append(a.Queues, q.Name)
			}
			a.InCall = a.InCall || m.InCall
		}
	}
	return agents
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
