package storage

var schemas = map[string][]string{
	DriverSqlite: {
		`CREATE TABLE IF NOT EXISTS sync_job (
			id TEXT NOT NULL PRIMARY KEY,
			project TEXT NOT NULL,
			rsync_host TEXT NOT NULL,
			rsync_module TEXT NOT NULL,
			dest TEXT NOT NULL,
			rsync_password TEXT NOT NULL DEFAULT '',
			rsync_options TEXT NOT NULL,
			cron_options TEXT NOT NULL,
			paused INTEGER NOT NULL DEFAULT 0,
			create_time INTEGER NOT NULL,
			update_time INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS slave_node (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hostname TEXT NOT NULL,
			port INTEGER NOT NULL,
			create_time INTEGER NOT NULL,
			UNIQUE (hostname, port)
		)`,
		`CREATE TABLE IF NOT EXISTS job_run (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			job_id TEXT NOT NULL,
			project TEXT NOT NULL,
			trigger_by TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			cause TEXT NOT NULL DEFAULT '',
			slaves TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_run_job_id ON job_run (job_id)`,
		`CREATE TABLE IF NOT EXISTS slave_sync_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slave_id INTEGER NOT NULL,
			hostname TEXT NOT NULL,
			project TEXT NOT NULL,
			job_id TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			create_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slave_sync_log_project ON slave_sync_log (project)`,
	},
	DriverMysql: {
		"CREATE TABLE IF NOT EXISTS `sync_job` (" +
			"`id` VARCHAR(128) NOT NULL," +
			"`project` VARCHAR(255) NOT NULL," +
			"`rsync_host` VARCHAR(255) NOT NULL," +
			"`rsync_module` VARCHAR(512) NOT NULL," +
			"`dest` VARCHAR(512) NOT NULL," +
			"`rsync_password` VARCHAR(255) NOT NULL DEFAULT ''," +
			"`rsync_options` TEXT NOT NULL," +
			"`cron_options` TEXT NOT NULL," +
			"`paused` TINYINT NOT NULL DEFAULT 0," +
			"`create_time` BIGINT NOT NULL," +
			"`update_time` BIGINT NOT NULL," +
			"PRIMARY KEY (`id`)" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		"CREATE TABLE IF NOT EXISTS `slave_node` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT," +
			"`hostname` VARCHAR(255) NOT NULL," +
			"`port` INT NOT NULL," +
			"`create_time` BIGINT NOT NULL," +
			"PRIMARY KEY (`id`)," +
			"UNIQUE KEY `uk_slave_node_host_port` (`hostname`, `port`)" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		"CREATE TABLE IF NOT EXISTS `job_run` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT," +
			"`run_id` VARCHAR(64) NOT NULL," +
			"`job_id` VARCHAR(128) NOT NULL," +
			"`project` VARCHAR(255) NOT NULL," +
			"`trigger_by` VARCHAR(16) NOT NULL," +
			"`start_time` BIGINT NOT NULL," +
			"`end_time` BIGINT NOT NULL," +
			"`outcome` VARCHAR(16) NOT NULL," +
			"`cause` TEXT NOT NULL," +
			"`slaves` TEXT NOT NULL," +
			"PRIMARY KEY (`id`)," +
			"UNIQUE KEY `uk_job_run_run_id` (`run_id`)," +
			"KEY `idx_job_run_job_id` (`job_id`)" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		"CREATE TABLE IF NOT EXISTS `slave_sync_log` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT," +
			"`slave_id` BIGINT NOT NULL," +
			"`hostname` VARCHAR(255) NOT NULL," +
			"`project` VARCHAR(255) NOT NULL," +
			"`job_id` VARCHAR(128) NOT NULL DEFAULT ''," +
			"`run_id` VARCHAR(64) NOT NULL DEFAULT ''," +
			"`create_time` BIGINT NOT NULL," +
			"PRIMARY KEY (`id`)," +
			"KEY `idx_slave_sync_log_project` (`project`)" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	},
}
