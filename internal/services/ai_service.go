package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/models"
)

// maxPromptTasks caps how many tasks are serialized into a prompt; the
// most recently touched tasks win.
const maxPromptTasks = 200

// TextGenerator is the generative-text collaborator: prompt in, text
// out, error with a message on quota/network failure.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

type aiServiceImpl struct {
	logger       zerolog.Logger
	projects     ProjectService
	tasks        TaskService
	generator    TextGenerator
	summaryModel string
	qaModel      string
}

func NewAIService(
	logger zerolog.Logger,
	projects ProjectService,
	tasks TaskService,
	generator TextGenerator,
	summaryModel string,
	qaModel string,
) AIService {
	return &aiServiceImpl{
		logger:       logger,
		projects:     projects,
		tasks:        tasks,
		generator:    generator,
		summaryModel: summaryModel,
		qaModel:      qaModel,
	}
}

func (s *aiServiceImpl) Summarize(ctx context.Context, projectID string) (string, error) {
	project, tasks, err := s.loadContext(ctx, projectID)
	if err != nil {
		return "", err
	}

	prompt, err := buildSummaryPrompt(project, tasks)
	if err != nil {
		return "", err
	}

	text, err := s.generator.GenerateText(ctx, s.summaryModel, prompt)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Msg("summary generation failed")
		return "", err
	}

	s.logger.Info().
		Str("project_id", projectID).
		Msg("generated project summary")
	return text, nil
}

func (s *aiServiceImpl) Ask(ctx context.Context, projectID, taskID, question string) (string, error) {
	project, tasks, err := s.loadContext(ctx, projectID)
	if err != nil {
		return "", err
	}

	var focus *models.Task
	if taskID != "" {
		for i := range tasks {
			if tasks[i].ID == taskID {
				focus = &tasks[i]
				break
			}
		}
	}

	prompt, err := buildQAPrompt(project, tasks, focus, question)
	if err != nil {
		return "", err
	}

	text, err := s.generator.GenerateText(ctx, s.qaModel, prompt)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Msg("answer generation failed")
		return "", err
	}

	s.logger.Info().
		Str("project_id", projectID).
		Msg("answered project question")
	return text, nil
}

func (s *aiServiceImpl) loadContext(ctx context.Context, projectID string) (*models.Project, []models.Task, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	page, err := s.tasks.ListByProject(ctx, ListTasksParams{
		ProjectID:   projectID,
		Limit:       maxPromptTasks,
		RecentFirst: true,
	})
	if err != nil {
		return nil, nil, err
	}

	return project, clampTasks(page.Tasks, maxPromptTasks), nil
}

// clampTasks keeps at most max tasks, preferring the most recently
// updated ones.
func clampTasks(tasks []models.Task, max int) []models.Task {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

type promptTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Order       int64  `json:"order,omitempty"`
}

type promptProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func buildSummaryPrompt(project *models.Project, tasks []models.Task) (string, error) {
	projectJSON, err := json.Marshal(promptProject{
		Name:        project.Name,
		Description: project.Description,
	})
	if err != nil {
		return "", err
	}

	promptTasks := make([]promptTask, len(tasks))
	for i, t := range tasks {
		promptTasks[i] = promptTask{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.ColumnID,
			Order:       t.Order,
		}
	}
	tasksJSON, err := json.Marshal(promptTasks)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are an assistant for a Kanban project board. Summarize concisely.

Project:
%s

Tasks:
%s

Write:
- Snapshot: counts by status
- Progress highlights
- Risks/blockers
- Next 3-5 actions
At most 180 words. Be factual; say if data is missing.`, projectJSON, tasksJSON), nil
}

func buildQAPrompt(project *models.Project, tasks []models.Task, focus *models.Task, question string) (string, error) {
	payload := map[string]any{
		"project": promptProject{
			Name:        project.Name,
			Description: project.Description,
		},
		"question": question,
	}

	if focus != nil {
		payload["focus"] = promptTask{
			Title:       focus.Title,
			Description: focus.Description,
			Status:      focus.ColumnID,
		}
	}

	promptTasks := make([]promptTask, len(tasks))
	for i, t := range tasks {
		promptTasks[i] = promptTask{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.ColumnID,
		}
	}
	payload["tasks"] = promptTasks

	contextJSON, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Answer only from this project/task data. If info isn't present, say so.
Context:
%s
Answer in at most 120 words. If suggesting actions, list up to 3 bullets.`, contextJSON), nil
}
