package telegram

import (
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"
)

var historyStatusIcon = map[model.TaskExecutionStatus]string{
	model.StatusRunning:   "🟡",
	model.StatusCompleted: "🟢",
	model.StatusFailed:    "🔴",
	model.StatusTimeout:   "🟠",
}

func (t *TelegramBotHandler) handleScheduler(ctx context.Context, c telebot.Context) error {
	jobs, err := t.service.SchedulerService.GetJobSchedule(ctx, model.GetJobParam{
		IsActive: utils.ToPointer(true),
	})
	if err != nil {
		t.log.ErrorContext(ctx, "failed to get jobs", logger.ErrorField(err))
		_, err = t.telegram.Send(ctx, c, commonErrorInternalScheduler)
		return err
	}

	if len(jobs) == 0 {
		_, err = t.telegram.Send(ctx, c, "没有启用中的定时任务。")
		return err
	}

	msg := strings.Builder{}
	msg.WriteString("📋 启用中的定时任务：\n\n")
	msg.WriteString("<i>👉 点击下方按钮查看详情或手动运行</i>\n")

	menu := &telebot.ReplyMarkup{}
	rows := []telebot.Row{}
	for _, job := range jobs {
		btn := menu.Data(job.Name, btnDetailJob.Unique, strconv.FormatUint(uint64(job.ID), 10))
		rows = append(rows, menu.Row(btn))
	}
	rows = append(rows, menu.Row(menu.Data(btnDeleteMessage.Text, btnDeleteMessage.Unique)))
	menu.Inline(rows...)

	msgExist := c.Message()
	if c.Callback() != nil && msgExist != nil {
		_, err = t.telegram.Edit(ctx, c, msgExist, msg.String(), menu, telebot.ModeHTML)
		return err
	}

	_, err = t.telegram.Send(ctx, c, msg.String(), menu, telebot.ModeHTML)
	return err
}

func (t *TelegramBotHandler) handleBtnDetailJob(ctx context.Context, c telebot.Context) error {
	jobID, err := strconv.ParseUint(c.Data(), 10, 64)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to parse job id", logger.ErrorField(err))
		_, err = t.telegram.Send(ctx, c, commonErrorInternalScheduler)
		return err
	}

	jobs, err := t.service.SchedulerService.GetJobSchedule(ctx, model.GetJobParam{
		IDs: []uint{uint(jobID)},
		WithTaskHistory: &model.GetTaskExecutionHistoryParam{
			Limit: utils.ToPointer(5),
		},
	})
	if err != nil {
		t.log.ErrorContext(ctx, "failed to get job by id", logger.ErrorField(err))
		_, err = t.telegram.Send(ctx, c, commonErrorInternalScheduler)
		return err
	}
	if len(jobs) == 0 {
		_, err = t.telegram.Send(ctx, c, "任务不存在。")
		return err
	}

	menu := &telebot.ReplyMarkup{}
	btnBackJobList := menu.Data(btnActionBackToJobList.Text, btnActionBackToJobList.Unique)
	btnRun := menu.Data(btnActionRunJob.Text, btnActionRunJob.Unique, strconv.FormatUint(uint64(jobs[0].ID), 10))
	menu.Inline(menu.Row(btnRun, btnBackJobList))

	_, err = t.telegram.Edit(ctx, c, c.Message(), FormatJobDetail(jobs[0]), menu, telebot.ModeHTML)
	return err
}

// FormatJobDetail renders a job with its schedule and latest executions.
func FormatJobDetail(job model.Job) string {
	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("<b>%s</b>\n\n", job.Name))
	if job.Description != "" {
		msg.WriteString(fmt.Sprintf("🔍 %s\n\n", job.Description))
	}

	msg.WriteString("📅 调度：\n")
	if len(job.Schedules) > 0 {
		schedule := job.Schedules[0]
		msg.WriteString(fmt.Sprintf(" • Cron : <code>%s</code>\n", schedule.CronExpression))
		if schedule.LastExecution.Valid {
			msg.WriteString(fmt.Sprintf(" • 上次执行 : %s\n", utils.PrettyDate(schedule.LastExecution.Time)))
		} else {
			msg.WriteString(" • 上次执行 : 无\n")
		}
		if schedule.NextExecution.Valid {
			msg.WriteString(fmt.Sprintf(" • 下次执行 : %s\n", utils.PrettyDate(schedule.NextExecution.Time)))
		} else {
			msg.WriteString(" • 下次执行 : 无\n")
		}
	} else {
		msg.WriteString(" • 未配置\n")
	}

	msg.WriteString("\n📜 最近执行记录：\n")
	if len(job.Histories) == 0 {
		msg.WriteString("暂无\n")
	}
	for idx, history := range job.Histories {
		icon, ok := historyStatusIcon[history.Status]
		if !ok {
			icon = "⚪"
		}
		started := history.StartedAt.In(utils.GetCSTTimeLocation()).Format("01/02 15:04")
		if !history.CompletedAt.Valid {
			msg.WriteString(fmt.Sprintf("%d. %s %s - %s\n", idx+1, icon, started, strings.ToUpper(string(history.Status))))
			continue
		}
		duration := history.CompletedAt.Time.Sub(history.StartedAt)
		msg.WriteString(fmt.Sprintf("%d. %s %s - %d | %s (%.1fs)\n", idx+1, icon, started, history.ExitCode.Int32, strings.ToUpper(string(history.Status)), duration.Seconds()))
	}
	return msg.String()
}

func (t *TelegramBotHandler) handleBtnActionRunJob(ctx context.Context, c telebot.Context) error {
	jobID, err := strconv.ParseUint(c.Data(), 10, 64)
	if err != nil {
		t.log.ErrorContext(ctx, "failed to parse job id", logger.ErrorField(err))
		_, err = t.telegram.Send(ctx, c, commonErrorInternalScheduler)
		return err
	}

	if err := t.service.SchedulerService.RunJobTask(ctx, uint(jobID)); err != nil {
		t.log.ErrorContext(ctx, "failed to run job task", logger.ErrorField(err), logger.IntField("job_id", int(jobID)))
		_, err = t.telegram.Send(ctx, c, commonErrorInternalScheduler)
		return err
	}
	if err := t.telegram.Respond(ctx, c, &telebot.CallbackResponse{Text: "任务已触发"}); err != nil {
		t.log.WarnContext(ctx, "failed to respond callback", logger.ErrorField(err))
	}
	return t.handleBtnActionBackToJobList(ctx, c)
}

func (t *TelegramBotHandler) handleBtnActionBackToJobList(ctx context.Context, c telebot.Context) error {
	return t.handleScheduler(ctx, c)
}
