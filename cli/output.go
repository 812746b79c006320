package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nhirsama/infra-console/src/inter"
	"github.com/nhirsama/infra-console/src/viewmodel"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func printDashboard(out io.Writer, page viewmodel.DashboardPage) {
	tw := newTable(out)
	fmt.Fprintln(tw, "状态\t数量")
	for _, c := range page.Counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Text, c.Count)
	}
	fmt.Fprintf(tw, "合计\t%d\n", page.Total)
	tw.Flush()

	fmt.Fprintln(out)
	if len(page.HighRisk) == 0 {
		fmt.Fprintln(out, "暂无高风险预测")
		return
	}
	tw = newTable(out)
	fmt.Fprintln(tw, "资产\t风险\t故障概率\t预计故障日期")
	for _, p := range page.HighRisk {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.AssetLabel, p.RiskText, p.Probability, p.FailureDate)
	}
	tw.Flush()
}

func printAssets(out io.Writer, res inter.AssetPage) {
	tw := newTable(out)
	fmt.Fprintln(tw, "编号\t名称\t类型\t状态\t优先级\t安装日期")
	for _, a := range res.Content {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			a.AssetID, a.Name, viewmodel.TypeText(a.Type), viewmodel.StatusText(a.Status),
			a.MaintenancePriority, viewmodel.FormatDate(a.InstallationDate))
	}
	tw.Flush()
	pages := res.TotalPages
	if pages == 0 {
		pages = 1
	}
	fmt.Fprintf(out, "第 %d/%d 页，共 %d 项\n", res.Number+1, pages, res.TotalElements)
}

func printReadings(out io.Writer, page viewmodel.SensorsPage) {
	if page.Empty || len(page.Rows) == 0 {
		fmt.Fprintf(out, "%s 在 %s 内暂无传感器数据\n", page.Selected, page.Window)
		return
	}
	fmt.Fprintf(out, "%s 最近 %s: %d 条记录，%d 种类型，%d 个传感器，最新 %s\n",
		page.Selected, page.Window, page.Stats.Total, page.Stats.Types, page.Stats.Sensors, page.Stats.Latest)
	tw := newTable(out)
	fmt.Fprintln(tw, "时间\t传感器\t类型\t数值\t单位")
	for _, r := range page.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Time, r.SensorID, r.TypeLabel, r.Value, r.Unit)
	}
	tw.Flush()
}

func printPredictions(out io.Writer, list []inter.Prediction) {
	tw := newTable(out)
	fmt.Fprintln(tw, "资产\t风险\t故障概率\t置信度\t预计故障日期\t建议")
	for _, p := range list {
		label := p.AssetID()
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			label, viewmodel.RiskText(p.RiskLevel), viewmodel.FormatPercent(p.FailureProbability),
			viewmodel.FormatPercent(p.ConfidenceScore), viewmodel.FormatDate(p.PredictedFailureDate), p.RecommendedAction)
	}
	tw.Flush()
}
