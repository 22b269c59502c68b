package main

import (
	"reflect"
	"testing"
)

func TestParseRunArgs_Timepoints(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{name: "分离形式", args: []string{"--timepoints", "t00,t03"}, want: []string{"t00", "t03"}},
		{name: "等号形式", args: []string{"--timepoints=t00,t03"}, want: []string{"t00", "t03"}},
		{name: "带空白", args: []string{"--timepoints", " t00 , t03 "}, want: []string{"t00", "t03"}},
		{name: "单个合法", args: []string{"--timepoints", "t00"}, want: []string{"t00"}},
		{name: "三个过多", args: []string{"--timepoints", "t00,t01,t02"}, wantErr: true},
		{name: "两个相同", args: []string{"--timepoints", "t00,t00"}, wantErr: true},
		{name: "格式错误", args: []string{"--timepoints", "00,t03"}, wantErr: true},
		{name: "空值", args: []string{"--timepoints", ""}, wantErr: true},
		{name: "缺值", args: []string{"--timepoints"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ra, err := parseRunArgs(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("期望报错，实际成功：%+v", ra)
				}
				return
			}
			if err != nil {
				t.Fatalf("期望成功，实际报错：%v", err)
			}
			if !ra.TimepointsSet {
				t.Fatalf("TimepointsSet 应为 true")
			}
			if !reflect.DeepEqual(ra.Timepoints, tc.want) {
				t.Fatalf("timepoints 期望 %v，实际 %v", tc.want, ra.Timepoints)
			}
		})
	}
}

func TestParseRunArgs_ApplyAndPath(t *testing.T) {
	ra, err := parseRunArgs([]string{"/data", "--apply=false"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if ra.Path != "/data" {
		t.Fatalf("path 期望 /data，实际 %q", ra.Path)
	}
	if !ra.ApplySet || ra.Apply {
		t.Fatalf("--apply=false 应显式关闭 apply：%+v", ra)
	}

	if _, err := parseRunArgs([]string{"/a", "/b"}); err == nil {
		t.Fatalf("重复 path 应报错")
	}
	if _, err := parseRunArgs([]string{"--apply=banana"}); err == nil {
		t.Fatalf("非法 --apply 值应报错")
	}
	if _, err := parseRunArgs([]string{"--unknown"}); err == nil {
		t.Fatalf("未知参数应报错")
	}
}

func TestParsePairArgs(t *testing.T) {
	pa, err := parsePairArgs([]string{"a_t00_rois.zip", "a_t03_rois.zip", "--apply=false"})
	if err != nil {
		t.Fatalf("解析失败：%v", err)
	}
	if pa.PathA != "a_t00_rois.zip" || pa.PathB != "a_t03_rois.zip" {
		t.Fatalf("位置参数解析错误：%+v", pa)
	}
	if !pa.ApplySet || pa.Apply {
		t.Fatalf("--apply=false 应显式关闭 apply：%+v", pa)
	}

	if _, err := parsePairArgs([]string{"only_one.zip"}); err == nil {
		t.Fatalf("只有一个路径应报错")
	}
	if _, err := parsePairArgs([]string{"a.zip", "b.zip", "c.zip"}); err == nil {
		t.Fatalf("三个路径应报错")
	}
}
