package service

import "time"

func (ts *TaskService) SetNow(now func() time.Time) { ts.now = now }

func (es *EngineService) SetNow(now func() time.Time) { es.now = now }
