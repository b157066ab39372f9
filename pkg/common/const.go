package common

const (
	KEY_FEISHU_TENANT_TOKEN = "feishu_tenant_token:%s"
	KEY_BACKTEST_REPORT     = "backtest_report:%s"
	KEY_CARD_CALLBACK_EVENT = "card_callback_event:%s"
)

const (
	DATASOURCE_AUTO      = "auto"
	DATASOURCE_TUSHARE   = "tushare"
	DATASOURCE_AKSHARE   = "akshare"
	DATASOURCE_EASTMONEY = "eastmoney"
	DATASOURCE_YAHOO     = "yahoo"
)

func GetDatasourceList() []string {
	return []string{
		DATASOURCE_AUTO,
		DATASOURCE_TUSHARE,
		DATASOURCE_AKSHARE,
		DATASOURCE_EASTMONEY,
		DATASOURCE_YAHOO,
	}
}

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)
