package telegram

import "gopkg.in/telebot.v3"

var (
	btnDeleteMessage       telebot.Btn = telebot.Btn{Text: "🗑 关闭", Unique: "btn_delete_message"}
	btnDetailJob           telebot.Btn = telebot.Btn{Unique: "btn_detail_job"}
	btnActionRunJob        telebot.Btn = telebot.Btn{Text: "▶️ 立即运行", Unique: "btn_action_run_job"}
	btnActionBackToJobList telebot.Btn = telebot.Btn{Text: "⬅️ 返回列表", Unique: "btn_action_back_to_job_list"}
)

const (
	commonErrorInternal          = "内部错误，请稍后重试"
	commonErrorInternalBacktest  = commonErrorInternal + "，或重新发送 /backtest。"
	commonErrorInternalScheduler = commonErrorInternal + "，或重新发送 /scheduler。"

	// keepDefault is the answer that keeps the default for optional steps.
	keepDefault = "-"
)
