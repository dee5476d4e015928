package lifecycle

import (
	"tutormarket/models"
)

// Status вычисляет статус проекта. Порядок проверок важен:
// черновик важнее всего, завершение важнее выбранного предложения.
func Status(p *models.Project) models.Status {
	switch {
	case !p.Published:
		return models.StatusDraft
	case p.Completed:
		return models.StatusClosed
	case p.IsAwarded:
		return models.StatusAwarded
	default:
		return models.StatusOpen
	}
}

// CanEdit сообщает, может ли репетитор править предложение: только пока проект открыт.
func CanEdit(bid *models.Bid, project *models.Project) bool {
	return bid.ProjectID == project.ID && Status(project) == models.StatusOpen
}

// RefreshBudgetType синхронизирует тип бюджета предложения с проектом.
// Если тип изменился, прежняя сумма сбрасывается: фиксированная цена не должна
// молча стать почасовой ставкой.
func RefreshBudgetType(bid *models.Bid, project *models.Project) bool {
	if bid.BudgetType == project.BudgetType {
		return false
	}
	bid.Budget = nil
	bid.BudgetType = project.BudgetType
	return true
}

// BudgetDisplay форматирует бюджет: "$50.00/hour", "$50.00" или "(Fixed)" при пустой сумме.
func BudgetDisplay(budget *models.Money, budgetType models.BudgetType) string {
	if budget == nil || *budget <= 0 {
		return "(" + budgetType.Label() + ")"
	}
	s := "$" + budget.String()
	if budgetType == models.BudgetHourly {
		s += "/hour"
	}
	return s
}

// CurrentTutor выбирает репетитора первого по времени создания выбранного предложения.
// bids должны быть упорядочены по created_at, id.
func CurrentTutor(bids []models.Bid) (int, bool) {
	for _, b := range bids {
		if b.Awarded {
			return b.TutorID, true
		}
	}
	return 0, false
}
